package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/teachmate/internal/account"
	"github.com/p-n-ai/teachmate/internal/assessment"
	"github.com/p-n-ai/teachmate/internal/assistant"
	"github.com/p-n-ai/teachmate/internal/notify"
	"github.com/p-n-ai/teachmate/internal/planner"
	"github.com/p-n-ai/teachmate/internal/platform/validation"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error    string      `json:"error"`
	Kind     notify.Kind `json:"kind,omitempty"`
	Rule     string      `json:"rule,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &planner.ValidationError{Rule: "body", Message: "Invalid request body"}
	}
	return nil
}

// writeError maps domain errors to statuses. Auth failures carry a login
// redirect; everything else carries the message the teacher should see.
func writeError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	if status >= 500 {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	var (
		verr    *planner.ValidationError
		fieldEr *validation.Error
		failure *planner.Failure
	)
	switch {
	case errors.Is(err, account.ErrSessionExpired):
		return http.StatusUnauthorized, errorBody{Error: "Session expired, please log in again", Kind: notify.KindAuthFailure, Redirect: "/login"}
	case errors.Is(err, account.ErrNotSignedIn):
		return http.StatusUnauthorized, errorBody{Error: "Please log in", Kind: notify.KindAuthFailure, Redirect: "/login"}
	case errors.Is(err, account.ErrLoginFailed):
		return http.StatusUnauthorized, errorBody{Error: "Invalid email or password", Kind: notify.KindAuthFailure}
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, errorBody{Error: verr.Message, Kind: notify.KindValidationFailure, Rule: verr.Rule}
	case errors.As(err, &fieldEr):
		body := errorBody{Error: fieldEr.Error(), Kind: notify.KindValidationFailure}
		if len(fieldEr.Fields) > 0 {
			body.Error = fieldEr.Fields[0].Message
			body.Rule = fieldEr.Fields[0].Field
		}
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, assessment.ErrBadSchedule), errors.Is(err, account.ErrBadTheme):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Kind: notify.KindValidationFailure}
	case errors.Is(err, planner.ErrInFlight),
		errors.Is(err, planner.ErrSessionNotPending),
		errors.Is(err, planner.ErrSessionNotCompleted),
		errors.Is(err, planner.ErrAssessmentLinked):
		return http.StatusConflict, errorBody{Error: err.Error()}
	case errors.Is(err, planner.ErrPlanNotFound), errors.Is(err, planner.ErrSessionNotFound),
		errors.Is(err, assistant.ErrConversationNotFound), errors.Is(err, assistant.ErrMessageNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error()}
	case errors.Is(err, assistant.ErrBudgetExceeded):
		return http.StatusTooManyRequests, errorBody{Error: "Daily assistant limit reached, try again tomorrow"}
	case errors.As(err, &failure):
		return http.StatusBadGateway, errorBody{Error: failure.Message, Kind: failure.Kind}
	default:
		return http.StatusBadGateway, errorBody{Error: "The server could not complete the request"}
	}
}
