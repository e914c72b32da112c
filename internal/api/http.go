package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/folio/internal/github"
	"github.com/kalambet/folio/internal/record"
	"github.com/kalambet/folio/internal/recorder"
)

const maxBodyBytes = 1 << 20

// NewHandler returns the HTTP API. GET /conversations requires the bearer
// token when one is configured.
func NewHandler(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Get("/portfolio", handlePortfolio(d))
	r.Get("/knowledge", handleKnowledge(d))
	r.Get("/projects", handleProjects(d))
	r.Post("/contacts", handleCollectContact(d))
	r.Post("/conversations", handleSaveConversation(d))
	r.With(d.visitorAuth).Get("/conversations", handleRecentConversations(d))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", handleCreateSession(d))
		r.Get("/{id}", handleGetSession(d))
		r.Post("/{id}/turns", handleAddTurn(d))
		r.Post("/{id}/contact", handleSessionContact(d))
		r.Post("/{id}/end", handleEndSession(d))
	})
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handlePortfolio(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := d.Portfolio.PortfolioInfo(r.Context())
		if err != nil {
			d.logger().Error("loading portfolio", "error", err)
			httpError(w, http.StatusBadGateway, "store_unavailable", "Failed to retrieve portfolio: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func handleKnowledge(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := d.Portfolio.BuildKnowledgeSummary(r.Context())
		if err != nil {
			d.logger().Error("building knowledge summary", "error", err)
			httpError(w, http.StatusBadGateway, "store_unavailable", "%v", err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, summary)
	}
}

func handleProjects(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := r.URL.Query().Get("topic")
		if topic == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "topic is required")
			return
		}
		limit, err := queryInt(r, "limit", github.DefaultLimit)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		repos, err := searchProjects(r.Context(), d, topic, limit)
		switch {
		case errors.Is(err, errNoRepos):
			httpError(w, http.StatusServiceUnavailable, "not_configured", "%v", err)
			return
		case err != nil:
			d.logger().Error("searching repositories", "topic", topic, "error", err)
			httpError(w, http.StatusBadGateway, "upstream_error", "Failed to search projects: %v", err)
			return
		}
		if repos == nil {
			repos = []github.Repository{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"topic": topic, "repositories": repos})
	}
}

type contactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (c contactRequest) visitor() recorder.Visitor {
	return recorder.Visitor{Name: c.Name, Email: c.Email, Phone: c.Phone}
}

func handleCollectContact(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contactRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := collectContact(r.Context(), d, req.visitor())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ContactResult{Status: StatusError, Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type conversationRequest struct {
	contactRequest
	Turns []turnRequest `json:"turns"`
}

type turnRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (t turnRequest) turn() (record.Turn, error) {
	role, ok := record.ParseRole(t.Role)
	if !ok {
		return record.Turn{}, &record.ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", t.Role)}
	}
	return record.Turn{Role: role, Content: t.Content}, nil
}

// handleSaveConversation answers {"id": null} when the store write failed;
// only invalid input is an HTTP error.
func handleSaveConversation(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req conversationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		turns := make([]record.Turn, 0, len(req.Turns))
		for _, t := range req.Turns {
			turn, err := t.turn()
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			turns = append(turns, turn)
		}

		id, err := d.Recorder.SaveConversation(r.Context(), req.visitor(), turns)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]*string{"id": optional(id)})
	}
}

func handleRecentConversations(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", recorder.DefaultLimit)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"conversations": d.Recorder.RecentConversations(r.Context(), limit),
		})
	}
}

func handleCreateSession(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s := d.Sessions.Create()
		writeJSON(w, http.StatusCreated, map[string]string{"id": s.ID()})
	}
}

func handleGetSession(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := d.Sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		writeJSON(w, http.StatusOK, s.State())
	}
}

func handleAddTurn(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := d.Sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		var req turnRequest
		if !decodeBody(w, r, &req) {
			return
		}
		turn, err := req.turn()
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		s.AddTurn(turn.Role, turn.Content)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSessionContact tracks whichever identity fields are present and
// saves once name and email are both known.
func handleSessionContact(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := d.Sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		var req contactRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name != "" {
			if err := s.TrackName(req.Name); err != nil {
				writeJSON(w, http.StatusBadRequest, ContactResult{Status: StatusError, Message: err.Error()})
				return
			}
		}
		if req.Email != "" {
			if err := s.TrackEmail(req.Email); err != nil {
				writeJSON(w, http.StatusBadRequest, ContactResult{Status: StatusError, Message: err.Error()})
				return
			}
		}
		if req.Phone != "" {
			s.TrackPhone(req.Phone)
		}

		res, err := saveSession(r.Context(), d, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ContactResult{Status: StatusError, Message: missingIdentityMessage(err)})
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleEndSession(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := d.Sessions.End(r.Context(), chi.URLParam(r, "id"), d.Recorder)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": optional(id), "saved": id != ""})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid JSON: %v", err)
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]string{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
