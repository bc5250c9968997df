package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veysel440/go-ledger/internal/config"
	"github.com/Veysel440/go-ledger/internal/core"
)

func quiet() *slog.Logger { return slog.New(slog.NewJSONHandler(io.Discard, nil)) }

func TestOpen_SQLiteWithRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cfg := config.Default()
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "ledger.db")
	cfg.Lock.Driver = "redis"
	cfg.Lock.RedisURL = "redis://" + mr.Addr() + "/0"

	l, err := Open(ctx, cfg, quiet())
	require.NoError(t, err)
	defer l.Close(ctx)

	reg, err := l.Service.RegisterEvent(ctx, core.RegisterEvent{
		CaseID:       "C1",
		Action:       core.NewAction(core.DraftPayload{Title: "Petition"}),
		Confirmation: core.Confirmation{ConfirmedByUser: true, ConfirmedAt: time.Now()},
		Actor:        core.Actor{UserID: "u1"},
		Result:       core.Result{OK: true},
	})
	require.NoError(t, err)
	assert.True(t, reg.Recorded)

	res, err := l.Service.VerifyChain(ctx, "C1")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 1, res.Checked)
}

func TestOpen_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Lock.Driver = "redis"
	cfg.Lock.RedisURL = "redis://" + addr + "/0"

	_, err := Open(context.Background(), cfg, quiet())
	assert.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "postgres"
	_, err := Open(context.Background(), cfg, quiet())
	assert.Error(t, err)
}
