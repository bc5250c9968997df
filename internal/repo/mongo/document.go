package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veysel440/go-ledger/internal/core"
)

// eventDoc is the stored shape of an AuditEvent. The action payload is kept
// as its JSON text: BSON would turn nested maps into ordered documents and
// numbers into typed values, and the hash depends on the exact JSON form.
type eventDoc struct {
	ID           string    `bson:"_id"`
	CaseID       string    `bson:"caseId"`
	ChatID       string    `bson:"chatId,omitempty"`
	Kind         string    `bson:"kind"`
	Action       string    `bson:"action"`
	Confirmation confDoc   `bson:"confirmation"`
	Actor        actorDoc  `bson:"actor"`
	Result       resultDoc `bson:"result"`
	Hash         string    `bson:"hash"`
	PrevHash     string    `bson:"prevHash"`
	Seq          int64     `bson:"seq"`
	CreatedAt    time.Time `bson:"createdAt"`
	IsActive     bool      `bson:"isActive"`
	IdemHash     string    `bson:"idemHash,omitempty"`
}

type confDoc struct {
	ConfirmedByUser bool      `bson:"confirmedByUser"`
	ConfirmedAt     time.Time `bson:"confirmedAt"`
}

type actorDoc struct {
	UserID string `bson:"userId"`
	Role   string `bson:"role"`
}

type resultDoc struct {
	OK      bool   `bson:"ok"`
	Summary string `bson:"summary"`
	RefID   string `bson:"refId"`
}

func toDoc(ev core.AuditEvent) (eventDoc, error) {
	action, err := json.Marshal(ev.Action)
	if err != nil {
		return eventDoc{}, fmt.Errorf("encode action: %w", err)
	}
	return eventDoc{
		ID:           ev.ID,
		CaseID:       ev.CaseID,
		ChatID:       ev.ChatID,
		Kind:         string(ev.Action.Kind),
		Action:       string(action),
		Confirmation: confDoc{ev.Confirmation.ConfirmedByUser, ev.Confirmation.ConfirmedAt},
		Actor:        actorDoc{ev.Actor.UserID, ev.Actor.Role},
		Result:       resultDoc{ev.Result.OK, ev.Result.Summary, ev.Result.RefID},
		Hash:         ev.Hash,
		PrevHash:     ev.PrevHash,
		Seq:          ev.Seq,
		CreatedAt:    ev.CreatedAt,
		IsActive:     ev.IsActive,
		IdemHash:     ev.IdemHash,
	}, nil
}

// fromDoc restores times to UTC; the driver decodes dates in local time and
// the hash covers confirmedAt's text form. An action that no longer decodes
// marks the event damaged instead of failing the read.
func fromDoc(d eventDoc) core.AuditEvent {
	var action core.Action
	damaged := ""
	if err := json.Unmarshal([]byte(d.Action), &action); err != nil {
		action = core.Action{}
		damaged = fmt.Sprintf("decode action: %v", err)
	}
	conf := core.Confirmation{ConfirmedByUser: d.Confirmation.ConfirmedByUser}
	if !d.Confirmation.ConfirmedAt.IsZero() {
		conf.ConfirmedAt = d.Confirmation.ConfirmedAt.UTC()
	}
	return core.AuditEvent{
		ID:           d.ID,
		CaseID:       d.CaseID,
		ChatID:       d.ChatID,
		Action:       action,
		Confirmation: conf,
		Actor:        core.Actor{UserID: d.Actor.UserID, Role: d.Actor.Role},
		Result:       core.Result{OK: d.Result.OK, Summary: d.Result.Summary, RefID: d.Result.RefID},
		Hash:         d.Hash,
		PrevHash:     d.PrevHash,
		Seq:          d.Seq,
		CreatedAt:    d.CreatedAt.UTC(),
		IsActive:     d.IsActive,
		Damaged:      damaged,
		IdemHash:     d.IdemHash,
	}
}
