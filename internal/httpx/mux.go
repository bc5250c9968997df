package httpx

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Veysel440/go-ledger/internal/core"
	"github.com/Veysel440/go-ledger/internal/service"
	"github.com/Veysel440/go-ledger/internal/telemetry"
	"github.com/Veysel440/go-ledger/pkg/rate"
)

const maxBodyBytes = 1 << 20

type Deps struct {
	Service *service.Service
	Metrics *telemetry.Metrics
	Limiter *rate.Limiter
	APIKeys []string
}

type registerRequest struct {
	ChatID       string            `json:"chatId"`
	Action       core.Action       `json:"action"`
	Confirmation core.Confirmation `json:"confirmation"`
	Actor        core.Actor        `json:"actor"`
	Result       core.Result       `json:"result"`
}

type rollbackRequest struct {
	TargetEventID string `json:"targetEventId" validate:"required"`
	Actor         struct {
		UserID string `json:"userId" validate:"required"`
		Role   string `json:"role"`
	} `json:"actor"`
}

func NewMux(logger *slog.Logger, d Deps) http.Handler {
	svc := d.Service
	validate := validator.New()
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
	})
	mux.Handle("GET /metrics", d.Metrics.Handler())

	// register
	mux.HandleFunc("POST /v1/cases/{caseId}/events", func(w http.ResponseWriter, r *http.Request) {
		var in registerRequest
		if !decodeBody(w, r, &in) {
			return
		}

		idem := r.Header.Get("Idempotency-Key")
		hash := ""
		if idem != "" {
			h := sha256.Sum256([]byte(idem))
			hash = hex.EncodeToString(h[:])
		}

		reg, err := svc.RegisterEvent(r.Context(), core.RegisterEvent{
			CaseID: r.PathValue("caseId"), ChatID: in.ChatID,
			Action: in.Action, Confirmation: in.Confirmation,
			Actor: in.Actor, Result: in.Result, IdemHash: hash,
		})
		if err != nil {
			logger.Error("register_failed", "caseId", r.PathValue("caseId"), "err", err)
			writeServiceErr(w, err)
			return
		}
		switch {
		case !reg.Recorded:
			writeJSON(w, http.StatusAccepted, reg)
		case reg.Duplicate:
			writeJSON(w, http.StatusOK, reg)
		default:
			writeJSON(w, http.StatusCreated, reg)
		}
	})

	// list
	mux.HandleFunc("GET /v1/cases/{caseId}/events", func(w http.ResponseWriter, r *http.Request) {
		f, ok := parseFilter(w, r)
		if !ok {
			return
		}
		f.CaseID = r.PathValue("caseId")
		list, err := svc.List(r.Context(), f)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	// get
	mux.HandleFunc("GET /v1/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	// verify
	mux.HandleFunc("GET /v1/cases/{caseId}/verify", func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.VerifyChain(r.Context(), r.PathValue("caseId"))
		if err != nil {
			logger.Error("verify_failed", "caseId", r.PathValue("caseId"), "err", err)
			writeErr(w, http.StatusServiceUnavailable, "verification_unavailable")
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	// timeline
	mux.HandleFunc("GET /v1/cases/{caseId}/timeline", func(w http.ResponseWriter, r *http.Request) {
		tl, err := svc.BuildTimeline(r.Context(), r.PathValue("caseId"))
		if err != nil {
			logger.Error("timeline_failed", "caseId", r.PathValue("caseId"), "err", err)
			writeErr(w, http.StatusServiceUnavailable, "timeline_unavailable")
			return
		}
		writeJSON(w, http.StatusOK, tl)
	})

	// rollback
	mux.HandleFunc("POST /v1/cases/{caseId}/rollback", func(w http.ResponseWriter, r *http.Request) {
		var in rollbackRequest
		if !decodeBody(w, r, &in) {
			return
		}
		if err := validate.Struct(in); err != nil {
			writeErr(w, http.StatusBadRequest, "validation")
			return
		}
		out, err := svc.RollbackTo(r.Context(), r.PathValue("caseId"), in.TargetEventID,
			core.Actor{UserID: in.Actor.UserID, Role: in.Actor.Role})
		if err != nil {
			logger.Warn("rollback_failed", "caseId", r.PathValue("caseId"), "target", in.TargetEventID, "err", err)
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	auth := NewAPIKeyAuth(d.APIKeys)
	return withRecover(logger, withMetrics(d.Metrics, withLogging(logger, auth.Middleware(withRate(d.Limiter)(mux)))))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeErr(w, http.StatusRequestEntityTooLarge, "body_too_large")
	} else {
		writeErr(w, http.StatusBadRequest, "invalid_json")
	}
	return false
}

func parseFilter(w http.ResponseWriter, r *http.Request) (service.ListFilter, bool) {
	q := r.URL.Query()
	var f service.ListFilter
	f.ActorID = q.Get("actorId")
	if v := q.Get("kind"); v != "" {
		f.Kind = core.ActionKind(v)
		if !f.Kind.Valid() {
			writeErr(w, http.StatusBadRequest, "invalid_kind")
			return f, false
		}
	}
	if v := q.Get("active"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.Active = &b
		}
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.Until = &t
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.Offset = n
		}
	}
	return f, true
}

func writeServiceErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not_found")
	case errors.Is(err, service.ErrInvalidTarget):
		writeErr(w, http.StatusNotFound, "invalid_target")
	case errors.Is(err, service.ErrValidation):
		writeErr(w, http.StatusBadRequest, "validation")
	case errors.Is(err, service.ErrIdempotencyReused):
		writeErr(w, http.StatusConflict, "idempotency_key_reused")
	case errors.Is(err, service.ErrConflict):
		writeErr(w, http.StatusConflict, "chain_conflict")
	default:
		writeErr(w, http.StatusServiceUnavailable, "service_unavailable")
	}
}
