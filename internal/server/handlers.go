package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/dataexplorer/internal/auth"
	"github.com/leapstack-labs/dataexplorer/internal/stream"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Message string `json:"message"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string         `json:"token"`
	User  auth.Principal `json:"user"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listDatasets(w http.ResponseWriter, _ *http.Request) {
	datasets := s.datasets
	if datasets == nil {
		datasets = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"datasets": datasets})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid request body"})
		return
	}

	p, err := s.identities.Verify(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "Invalid credentials"})
		return
	}
	if err != nil {
		s.logger.Error("verify credentials", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "login failed"})
		return
	}

	token := s.tokens.Issue(p)

	sess, _ := s.sessionStore.Get(r, sessionName)
	sess.Values["user_id"] = p.ID
	sess.Values["username"] = p.Username
	sess.Values["email"] = p.Email
	if err := sess.Save(r, w); err != nil {
		s.logger.Warn("save session", "error", err)
	}

	s.logger.Info("user logged in", "user", p.Username)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: p})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		s.tokens.Revoke(strings.TrimSpace(token))
	}
	if sess, err := s.sessionStore.Get(r, sessionName); err == nil {
		sess.Options.MaxAge = -1
		_ = sess.Save(r, w)
	}
	w.WriteHeader(http.StatusNoContent)
}

// chat streams the pipeline's events for one question. Once the stream has
// started every failure is reported in-band by the pipeline.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid request body"})
		return
	}
	question := strings.TrimSpace(req.Message)
	if question == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "message is required"})
		return
	}
	if s.runner == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Message: "pipeline not configured"})
		return
	}

	logger := s.logger.With(slog.String("request_id", middleware.GetReqID(r.Context())))
	if p, ok := PrincipalFrom(r.Context()); ok {
		logger = logger.With(slog.String("user", p.Username))
	}
	ctx := stream.WithLogger(r.Context(), logger)

	sink, err := newEventStream(w)
	if err != nil {
		logger.Error("start event stream", "error", err)
		return
	}
	if err := s.runner.Run(ctx, question, sink); err != nil {
		logger.Debug("stream ended with error", "error", err)
	}
}
