package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"gemchat/gemchat/controllers"
	"gemchat/gemchat/middlewares"
	"gemchat/gemchat/services/genai"
	"gemchat/gemchat/sources/store"
	"gemchat/gemchat/sources/store/dao"
	"gemchat/gemchat/utils/types"

	"github.com/go-chi/chi/v5"
)

func ChatRoutes(ctrl *controllers.ChatController) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.APIKeyMiddleware)

	// POST /chat/ : submit one turn
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var req types.TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := ctrl.SubmitTurn(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, resp)
	})

	// POST /chat/sessions : create a session (id generated when omitted)
	r.Post("/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sess, err := ctrl.CreateSession(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sess)
	})

	// GET /chat/sessions : most recently active first
	r.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
		sessions, err := ctrl.ListSessions(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, sessions)
	})

	// DELETE /chat/sessions : clear the whole store
	r.Delete("/sessions", func(w http.ResponseWriter, r *http.Request) {
		if err := ctrl.DeleteAllSessions(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// DELETE /chat/sessions/untitled?exclude=<id> : bulk cleanup of
	// sessions whose title generation never landed
	r.Delete("/sessions/untitled", func(w http.ResponseWriter, r *http.Request) {
		exclude := r.URL.Query().Get("exclude")
		if err := ctrl.DeleteUntitledSessions(r.Context(), exclude); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/sessions/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		sess, err := ctrl.GetSession(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, sess)
	})

	r.Delete("/sessions/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		if err := ctrl.DeleteSession(r.Context(), chi.URLParam(r, "session_id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/sessions/{session_id}/messages", func(w http.ResponseWriter, r *http.Request) {
		msgs, err := ctrl.GetMessagesForSession(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, msgs)
	})

	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. Upstream
// generation failures keep their classification in the body; the turn's
// history is already consistent by the time they surface here.
func writeError(w http.ResponseWriter, err error) {
	resp := types.ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var genErr *genai.Error
	switch {
	case errors.Is(err, controllers.ErrEmptyInput),
		errors.Is(err, controllers.ErrNoModel),
		errors.Is(err, dao.ErrEmptyContent):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateSession):
		status = http.StatusConflict
	case errors.As(err, &genErr):
		resp.Kind = genErr.Kind.String()
		if genErr.Kind == genai.KindAuth {
			status = http.StatusUnauthorized
		} else {
			status = http.StatusBadGateway
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
