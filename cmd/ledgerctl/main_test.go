package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veysel440/go-ledger/internal/core"
	"github.com/Veysel440/go-ledger/internal/repo/sqlite"
	"github.com/Veysel440/go-ledger/internal/service"
)

func seed(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, sqlite.Config{Path: path})
	require.NoError(t, err)
	defer store.Close()

	s := service.New(store, nil)
	for _, title := range []string{"a", "b", "c"} {
		_, err := s.RegisterEvent(ctx, core.RegisterEvent{
			CaseID:       "C1",
			Action:       core.NewAction(core.DraftPayload{Title: title}),
			Confirmation: core.Confirmation{ConfirmedByUser: true, ConfirmedAt: time.Now()},
			Actor:        core.Actor{UserID: "u1"},
			Result:       core.Result{OK: true, Summary: title},
		})
		require.NoError(t, err)
	}
}

func useSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv("LEDGER_CONFIG", "")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("LOCK_DRIVER", "local")
	return path
}

func TestVerify_OK(t *testing.T) {
	path := useSQLite(t)
	seed(t, path)

	var out, errOut bytes.Buffer
	code := run([]string{"verify", "-case", "C1"}, &out, &errOut)
	require.Equal(t, exitOK, code, errOut.String())

	var res service.VerifyResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.True(t, res.OK)
	assert.Equal(t, 3, res.Checked)
}

func TestVerify_Broken(t *testing.T) {
	path := useSQLite(t)
	seed(t, path)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE audit_events SET result_summary = 'edited' WHERE seq = 2`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var out, errOut bytes.Buffer
	assert.Equal(t, exitBroken, run([]string{"verify", "-case", "C1"}, &out, &errOut))

	var res service.VerifyResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.False(t, res.OK)
	assert.Equal(t, 1, res.Checked)
}

func TestRun_Usage(t *testing.T) {
	useSQLite(t)
	var out, errOut bytes.Buffer
	assert.Equal(t, exitErr, run(nil, &out, &errOut))
	assert.Equal(t, exitErr, run([]string{"verify"}, &out, &errOut))
	assert.Equal(t, exitErr, run([]string{"purge", "-case", "C1"}, &out, &errOut))
}
