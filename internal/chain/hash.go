package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Veysel440/go-ledger/internal/core"
)

// Genesis is the prevHash of the first event in every case chain.
const Genesis = ""

// ErrDamaged reports an event whose stored form could not be decoded.
var ErrDamaged = errors.New("chain: damaged event")

// ComputeHash returns hex(SHA-256(canonical || prevHash)). The payload bytes
// come first and prevHash is appended as its hex text.
func ComputeHash(canonical []byte, prevHash string) string {
	h := sha256.New()
	h.Write(canonical)
	h.Write([]byte(prevHash))
	return hex.EncodeToString(h.Sum(nil))
}

// linkPayload is the part of an event covered by its hash. ID, ChatID,
// CreatedAt, Seq, Hash and IsActive are outside it.
type linkPayload struct {
	CaseID       string            `json:"caseId"`
	Action       core.Action       `json:"action"`
	Confirmation core.Confirmation `json:"confirmation"`
	Actor        core.Actor        `json:"actor"`
	Result       core.Result       `json:"result"`
}

// Payload returns the canonical bytes hashed for ev.
func Payload(ev core.AuditEvent) ([]byte, error) {
	if ev.Damaged != "" {
		return nil, fmt.Errorf("%w %s: %s", ErrDamaged, ev.ID, ev.Damaged)
	}
	return Canonicalize(linkPayload{
		CaseID:       ev.CaseID,
		Action:       ev.Action,
		Confirmation: ev.Confirmation,
		Actor:        ev.Actor,
		Result:       ev.Result,
	})
}

// EventHash is the single formula used on both the append and verify paths.
func EventHash(ev core.AuditEvent, prevHash string) (string, error) {
	payload, err := Payload(ev)
	if err != nil {
		return "", err
	}
	return ComputeHash(payload, prevHash), nil
}
