package core

import "time"

// AuditEvent is one link of a case's hash chain. Everything except IsActive
// is fixed once persisted.
type AuditEvent struct {
	ID           string       `json:"id"`
	CaseID       string       `json:"caseId"`
	ChatID       string       `json:"chatId,omitempty"`
	Action       Action       `json:"action"`
	Confirmation Confirmation `json:"confirmation"`
	Actor        Actor        `json:"actor"`
	Result       Result       `json:"result"`
	Hash         string       `json:"hash"`
	PrevHash     string       `json:"prevHash"`
	Seq          int64        `json:"seq"`
	CreatedAt    time.Time    `json:"createdAt"`
	IsActive     bool         `json:"isActive"`

	// Damaged is set by a store when a hashed field of the stored record no
	// longer decodes. Such an event cannot verify.
	Damaged string `json:"damaged,omitempty"`

	IdemHash string `json:"-"`
}

// Clone returns ev with no slice or map shared with the original.
func (ev AuditEvent) Clone() AuditEvent {
	ev.Action = ev.Action.Clone()
	return ev
}

type Confirmation struct {
	ConfirmedByUser bool      `json:"confirmedByUser"`
	ConfirmedAt     time.Time `json:"confirmedAt"`
}

type Actor struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type Result struct {
	OK      bool   `json:"ok"`
	Summary string `json:"summary"`
	RefID   string `json:"refId"`
}

// Normalized returns c with ConfirmedAt in UTC at millisecond precision, the
// resolution every store keeps.
func (c Confirmation) Normalized() Confirmation {
	if !c.ConfirmedAt.IsZero() {
		c.ConfirmedAt = Timestamp(c.ConfirmedAt)
	}
	return c
}

// Timestamp truncates t to the precision persisted for ledger times.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// RegisterEvent is the input of a ledger append.
type RegisterEvent struct {
	CaseID       string
	ChatID       string
	Action       Action
	Confirmation Confirmation
	Actor        Actor
	Result       Result
	IdemHash     string
}
