package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type ActionKind string

const (
	KindDraft   ActionKind = "draft"
	KindAgenda  ActionKind = "agenda"
	KindControl ActionKind = "control"
)

// Valid reports whether k is one of the closed set of action kinds.
func (k ActionKind) Valid() bool {
	switch k {
	case KindDraft, KindAgenda, KindControl:
		return true
	}
	return false
}

// Payload is implemented by exactly one struct per ActionKind.
type Payload interface {
	Kind() ActionKind
}

// Action is the tagged variant {kind, payload} recorded by the ledger.
// The zero Action has no kind and is never recorded.
type Action struct {
	Kind    ActionKind
	Payload Payload
}

type DraftPayload struct {
	DraftID      string         `json:"draftId,omitempty"`
	Title        string         `json:"title"`
	DocumentType string         `json:"documentType"`
	Parties      []string       `json:"parties,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
}

func (DraftPayload) Kind() ActionKind { return KindDraft }

type AgendaPayload struct {
	Title        string    `json:"title"`
	ScheduledFor time.Time `json:"scheduledFor"`
	Location     string    `json:"location,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	Notes        string    `json:"notes,omitempty"`
}

func (AgendaPayload) Kind() ActionKind { return KindAgenda }

type ControlPayload struct {
	Operation string         `json:"operation"`
	Target    string         `json:"target,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

func (ControlPayload) Kind() ActionKind { return KindControl }

func NewAction(p Payload) Action {
	return Action{Kind: p.Kind(), Payload: p}
}

// Clone deep-copies the payload's slices and free-form maps.
func (a Action) Clone() Action {
	switch p := a.Payload.(type) {
	case DraftPayload:
		p.Parties = cloneStrings(p.Parties)
		p.Fields = cloneMap(p.Fields)
		a.Payload = p
	case AgendaPayload:
		p.Participants = cloneStrings(p.Participants)
		a.Payload = p
	case ControlPayload:
		p.Params = cloneMap(p.Params)
		a.Payload = p
	}
	return a
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return cloneStrings(val)
	}
	return v
}

type actionWire struct {
	Kind    ActionKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	if a.Payload != nil && a.Payload.Kind() != a.Kind {
		return nil, fmt.Errorf("action: payload kind %q does not match %q", a.Payload.Kind(), a.Kind)
	}
	p := a.Payload
	if p == nil && a.Kind != "" {
		// An omitted payload encodes as the kind's zero struct, the form it decodes back to.
		zero, err := decodePayload(a.Kind, nil)
		if err != nil {
			return nil, err
		}
		p = zero
	}
	raw := json.RawMessage("null")
	if p != nil {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(actionWire{Kind: a.Kind, Payload: raw})
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var w actionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*a = Action{Kind: w.Kind}
	if w.Kind == "" {
		return nil
	}
	p, err := decodePayload(w.Kind, w.Payload)
	if err != nil {
		return err
	}
	a.Payload = p
	return nil
}

func decodePayload(kind ActionKind, raw json.RawMessage) (Payload, error) {
	empty := len(raw) == 0 || bytes.Equal(raw, []byte("null"))
	switch kind {
	case KindDraft:
		var p DraftPayload
		if !empty {
			if err := decodeNumbers(raw, &p); err != nil {
				return nil, fmt.Errorf("draft payload: %w", err)
			}
		}
		return p, nil
	case KindAgenda:
		var p AgendaPayload
		if !empty {
			if err := decodeNumbers(raw, &p); err != nil {
				return nil, fmt.Errorf("agenda payload: %w", err)
			}
		}
		return p, nil
	case KindControl:
		var p ControlPayload
		if !empty {
			if err := decodeNumbers(raw, &p); err != nil {
				return nil, fmt.Errorf("control payload: %w", err)
			}
		}
		return p, nil
	}
	return nil, fmt.Errorf("action: unknown kind %q", kind)
}

// decodeNumbers keeps numeric literals in free-form maps as json.Number so
// large integers survive a storage round trip unchanged.
func decodeNumbers(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
