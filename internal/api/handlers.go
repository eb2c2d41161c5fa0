package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/civcon/ussd-engine/internal/engine"
	"github.com/civcon/ussd-engine/internal/repo"
	"github.com/civcon/ussd-engine/internal/scheduler"
)

// CallbackEngine is what the USSD endpoint needs from the state machine.
type CallbackEngine interface {
	Handle(ctx context.Context, req engine.Request) engine.Reply
}

type Handler struct {
	eng    CallbackEngine
	repo   repo.MessageRepository
	scheds map[string]*scheduler.Scheduler
}

func NewHandler(eng CallbackEngine, r repo.MessageRepository, scheds map[string]*scheduler.Scheduler) *Handler {
	return &Handler{eng: eng, repo: r, scheds: scheds}
}

type callbackPayload struct {
	SessionID   string `json:"sessionId"`
	PhoneNumber string `json:"phoneNumber"`
	Text        string `json:"text"`
}

// UssdCallback is the gateway-facing endpoint. The response is a plain-text
// line whose prefix tells the gateway whether the session continues (CON)
// or ends (END); anything structured would confuse it, so even bad requests
// come back as an END line with status 200.
func (h *Handler) UssdCallback(w http.ResponseWriter, r *http.Request) {
	var p callbackPayload

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeUssd(w, engine.Reply{Text: "Sorry, an error occurred. Please try again.", End: true})
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeUssd(w, engine.Reply{Text: "Sorry, an error occurred. Please try again.", End: true})
			return
		}
		p.SessionID = r.PostForm.Get("sessionId")
		p.PhoneNumber = r.PostForm.Get("phoneNumber")
		p.Text = r.PostForm.Get("text")
	}

	if p.SessionID == "" || p.PhoneNumber == "" {
		writeUssd(w, engine.Reply{Text: "Sorry, an error occurred. Please try again.", End: true})
		return
	}

	reply := h.eng.Handle(r.Context(), engine.Request{
		SessionID:   p.SessionID,
		PhoneNumber: p.PhoneNumber,
		Text:        p.Text,
	})
	writeUssd(w, reply)
}

func writeUssd(w http.ResponseWriter, reply engine.Reply) {
	prefix := "CON "
	if reply.End {
		prefix = "END "
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(prefix + reply.Text))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.schedulerState())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	for _, s := range h.scheds {
		s.Start()
	}
	writeJSON(w, http.StatusOK, h.schedulerState())
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	for _, s := range h.scheds {
		s.Stop()
	}
	writeJSON(w, http.StatusOK, h.schedulerState())
}

func (h *Handler) schedulerState() map[string]any {
	state := make(map[string]any, len(h.scheds))
	for name, s := range h.scheds {
		state[name] = s.IsRunning()
	}
	return state
}

func (h *Handler) ListSentMessages(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.repo.ListSent(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
