package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/TemirB/freight-portal/internal/auth"
	"github.com/TemirB/freight-portal/internal/documents"
	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/tracking"
	"github.com/TemirB/freight-portal/internal/upstream"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := s.svc.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r.Context()))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Auth.Logout(r.Context(), tokenFrom(r.Context())); err != nil {
		s.fail(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) executives(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Auth.Executives(r.Context())
	if err != nil {
		s.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Auth.ListUsers(r.Context(), domain.Role(r.URL.Query().Get("role")))
	if err != nil {
		s.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req auth.NewUser
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.svc.Auth.CreateUser(r.Context(), req)
	if err != nil {
		s.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	actor := userFrom(r.Context()).Username
	if err := s.svc.Auth.DeleteUser(r.Context(), actor, chi.URLParam(r, "username")); err != nil {
		s.fail(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createTracked(w http.ResponseWriter, r *http.Request) {
	var req tracking.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u := userFrom(r.Context())
	// Customers only track for themselves; staff may file under any reference.
	if u.Role == domain.RoleCustomer {
		if ref := strings.TrimSpace(req.Reference); ref != "" && !strings.EqualFold(ref, u.Username) {
			s.fail(w, r, upstream.Validation("reference must be your own username"), nil)
			return
		}
		req.Reference = u.Username
	}
	shipment, err := s.svc.Tracker.Create(r.Context(), u.Username, req)
	if err != nil {
		s.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, shipment)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.Documents.List(r.Context(), chi.URLParam(r, "shipmentID"))
	if err != nil {
		s.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.Documents.Get(r.Context(), chi.URLParam(r, "shipmentID"), chi.URLParam(r, "docID"))
	if err != nil {
		s.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	var up documents.Upload
	if !decodeJSON(w, r, &up) {
		return
	}
	u := userFrom(r.Context())
	if u.Role == domain.RoleCustomer {
		up.Owner = ""
	}
	doc, err := s.svc.Documents.Upload(r.Context(), u.Username, chi.URLParam(r, "shipmentID"), up)
	if err != nil {
		s.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Documents.Delete(r.Context(), userFrom(r.Context()).Username, chi.URLParam(r, "shipmentID"), chi.URLParam(r, "docID"))
	if err != nil {
		s.fail(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.svc.Chat.History(r.Context(), userFrom(r.Context()).Username)
	if err != nil {
		s.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) clearChat(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Chat.ClearHistory(r.Context(), userFrom(r.Context()).Username); err != nil {
		s.fail(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reply, err := s.svc.Chat.Send(r.Context(), userFrom(r.Context()).Username, req.Message)
	if err != nil {
		s.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// streamChat answers with server-sent events: one "frame" event per rendered
// prefix of the reply, then a "done" event carrying the stored message.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reply, frames, err := s.svc.Chat.Stream(r.Context(), userFrom(r.Context()).Username, req.Message)
	if err != nil {
		s.fail(w, r, err, nil)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for frame := range frames {
		if err := writeEvent(w, "frame", frame); err != nil {
			s.logger.Debug("chat stream closed", zap.Error(err))
			return
		}
		_ = rc.Flush()
	}
	if r.Context().Err() != nil {
		return
	}
	_ = writeEvent(w, "done", reply)
	_ = rc.Flush()
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func (s *Server) debugMetrics(w http.ResponseWriter, r *http.Request) {
	if s.svc.Stats == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "metrics are not collected"})
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Stats.Stats())
}
