package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/TemirB/freight-portal/internal/auth"
	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/listing"
	"github.com/TemirB/freight-portal/internal/upstream"
)

type errorBody struct {
	Error string `json:"error"`
	// List is the unchanged state of the list a failed request was for.
	List any `json:"list,omitempty"`
}

// fail writes err as a JSON error. An upstream 401 also ends the caller's
// session, the same way an expired session does.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, list any) {
	status, msg := classify(err)

	if upstream.KindOf(err) == upstream.KindUnauthorized {
		if token := tokenFrom(r.Context()); token != "" {
			s.svc.Auth.Invalidate(r.Context(), token)
		}
	}

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Debug("request rejected", fields...)
	}
	writeJSON(w, status, errorBody{Error: msg, List: list})
}

func classify(err error) (int, string) {
	var ue *upstream.Error
	if errors.As(err, &ue) {
		switch ue.Kind {
		case upstream.KindUnauthorized:
			return http.StatusUnauthorized, ue.Message
		case upstream.KindValidation:
			return http.StatusBadRequest, ue.Message
		case upstream.KindBusiness:
			if ue.Status >= 400 && ue.Status < 500 {
				return ue.Status, ue.Message
			}
			return http.StatusConflict, ue.Message
		case upstream.KindNetwork:
			return http.StatusBadGateway, upstream.MsgConnection
		default:
			return http.StatusBadGateway, upstream.MessageOf(err, upstream.MsgUpstream)
		}
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, upstream.MsgTokenExpired
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrInvalid),
		errors.Is(err, listing.ErrInvalidFilter),
		errors.Is(err, listing.ErrNoUser):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "already exists"
	case errors.Is(err, listing.ErrBusy),
		errors.Is(err, listing.ErrNotLoaded),
		errors.Is(err, listing.ErrNoMore):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
