package chain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veysel440/go-ledger/internal/core"
)

func TestCanonicalize_SortsNestedKeys(t *testing.T) {
	var a, b any
	require.NoError(t, json.Unmarshal([]byte(`{"z":1,"a":{"y":[3,{"q":1,"p":2}],"b":true},"m":null}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"m":null,"a":{"b":true,"y":[3,{"p":2,"q":1}]},"z":1}`), &b))

	ca, err := Canonicalize(a)
	require.NoError(t, err)
	cb, err := Canonicalize(b)
	require.NoError(t, err)

	assert.Equal(t, `{"a":{"b":true,"y":[3,{"p":2,"q":1}]},"m":null,"z":1}`, string(ca))
	assert.Equal(t, ca, cb)
}

func TestCanonicalize_ArrayOrderMatters(t *testing.T) {
	ca, err := Canonicalize([]any{1, 2})
	require.NoError(t, err)
	cb, err := Canonicalize([]any{2, 1})
	require.NoError(t, err)
	assert.NotEqual(t, ca, cb)
}

func TestCanonicalize_NoHTMLEscapingAndExactNumbers(t *testing.T) {
	out, err := Canonicalize(map[string]any{"s": "<a&b>", "n": json.Number("12345678901234567890")})
	require.NoError(t, err)
	assert.Equal(t, `{"n":12345678901234567890,"s":"<a&b>"}`, string(out))
}

func TestCanonicalize_Unserializable(t *testing.T) {
	_, err := Canonicalize(map[string]any{"c": make(chan int)})
	assert.Error(t, err)
}

func TestComputeHash_DependsOnPrev(t *testing.T) {
	payload := []byte(`{"a":1}`)
	h1 := ComputeHash(payload, Genesis)
	h2 := ComputeHash(payload, h1)

	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, h1, ComputeHash(payload, Genesis))
}

func sampleEvent(fields map[string]any) core.AuditEvent {
	return core.AuditEvent{
		CaseID: "C1",
		Action: core.NewAction(core.DraftPayload{Title: "Petition", DocumentType: "petition", Fields: fields}),
		Confirmation: core.Confirmation{
			ConfirmedByUser: true,
			ConfirmedAt:     time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC),
		},
		Actor:  core.Actor{UserID: "u1", Role: "lawyer"},
		Result: core.Result{OK: true, Summary: "draft created", RefID: "d-1"},
	}
}

func TestEventHash_StableAcrossNestedKeyOrder(t *testing.T) {
	var f1, f2 map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"court":{"name":"X","room":4},"tags":["a","b"]}`), &f1))
	require.NoError(t, json.Unmarshal([]byte(`{"tags":["a","b"],"court":{"room":4,"name":"X"}}`), &f2))

	h1, err := EventHash(sampleEvent(f1), Genesis)
	require.NoError(t, err)
	h2, err := EventHash(sampleEvent(f2), Genesis)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestEventHash_IgnoresNonChainFields(t *testing.T) {
	ev := sampleEvent(nil)
	base, err := EventHash(ev, Genesis)
	require.NoError(t, err)

	ev.ID = "other"
	ev.ChatID = "chat-9"
	ev.IsActive = false
	ev.Seq = 42
	ev.CreatedAt = time.Now()
	ev.Hash = "junk"
	got, err := EventHash(ev, Genesis)
	require.NoError(t, err)
	assert.Equal(t, base, got)

	ev.Result.Summary = "tampered"
	got, err = EventHash(ev, Genesis)
	require.NoError(t, err)
	assert.NotEqual(t, base, got)
}

func TestEventHash_SurvivesJSONRoundTrip(t *testing.T) {
	ev := sampleEvent(map[string]any{"amount": 12, "big": json.Number("9007199254740993")})
	want, err := EventHash(ev, Genesis)
	require.NoError(t, err)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	var back core.AuditEvent
	require.NoError(t, json.Unmarshal(raw, &back))

	got, err := EventHash(back, Genesis)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCanonicalize_RejectsInvalidUTF8(t *testing.T) {
	for _, v := range []any{
		"\xff",
		map[string]any{"\xfe": 1},
		map[string]any{"a": []any{"ok", "\xff"}},
		core.Result{Summary: "bad \xff"},
	} {
		_, err := Canonicalize(v)
		assert.Error(t, err, "%#v", v)
	}

	out, err := Canonicalize(map[string]any{"s": "çağrı ✓"})
	require.NoError(t, err)
	assert.Equal(t, `{"s":"çağrı ✓"}`, string(out))
}

func TestEventHash_InvalidUTF8NeverCollides(t *testing.T) {
	ev := core.AuditEvent{
		CaseID: "C1",
		Action: core.NewAction(core.ControlPayload{Operation: "freeze", Params: map[string]any{"note": "\xfe"}}),
		Result: core.Result{OK: true, Summary: "\xff"},
	}
	_, err := EventHash(ev, Genesis)
	assert.Error(t, err)

	ev.Action = core.NewAction(core.ControlPayload{Operation: "freeze"})
	_, err = EventHash(ev, Genesis)
	assert.Error(t, err)
}

func TestEventHash_DamagedEvent(t *testing.T) {
	ev := core.AuditEvent{ID: "e1", CaseID: "C1", Action: core.NewAction(core.DraftPayload{Title: "x"})}
	_, err := EventHash(ev, Genesis)
	require.NoError(t, err)

	ev.Damaged = "decode action: unknown kind"
	_, err = EventHash(ev, Genesis)
	assert.ErrorIs(t, err, ErrDamaged)
}
