// Package engine is the USSD conversation state machine. Every gateway
// callback is a stateless HTTP request; the engine reconstructs the
// conversation from the session store, applies exactly one transition, and
// writes the session back (or deletes it on terminal transitions).
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/civcon/ussd-engine/internal/locale"
	"github.com/civcon/ussd-engine/internal/model"
	"github.com/civcon/ussd-engine/internal/moderation"
	"github.com/civcon/ussd-engine/internal/phone"
	"github.com/civcon/ussd-engine/internal/repo"
	"github.com/civcon/ussd-engine/internal/session"
)

// MaxQuestionLength is the hard cap on question content, matching the SMS
// segment size.
const MaxQuestionLength = 160

// BackToken steps the conversation to the previous state. "0" is taken by
// the consent menu, so back is "00".
const BackToken = "00"

// Request is one inbound gateway callback. Text carries the full
// '*'-separated input history for the session; only the last segment is the
// current step's input.
type Request struct {
	SessionID   string
	PhoneNumber string
	Text        string
}

// Reply is the single response line for a callback. End tells the gateway
// to close the session.
type Reply struct {
	Text string
	End  bool
}

func cont(text string) Reply { return Reply{Text: text} }
func end(text string) Reply  { return Reply{Text: text, End: true} }

type Moderator interface {
	Classify(text, lang string) moderation.Result
}

type Resolver interface {
	Resolve(ctx context.Context, district string) model.Recipient
}

type Notifier interface {
	Dispatch(ctx context.Context, phone, text string) error
}

type Deps struct {
	Store     session.Store
	Users     repo.UserRepository
	Messages  repo.MessageRepository
	Resolver  Resolver
	Moderator Moderator
	Notifier  Notifier
	Locales   *locale.Table
}

type Engine struct {
	store     session.Store
	users     repo.UserRepository
	messages  repo.MessageRepository
	resolver  Resolver
	moderator Moderator
	notifier  Notifier
	locales   *locale.Table

	steps map[model.Step]stepHandler
	back  map[model.Step]model.Step
}

type stepHandler func(ctx context.Context, sess *model.Session, input string) Reply

func New(d Deps) *Engine {
	e := &Engine{
		store:     d.Store,
		users:     d.Users,
		messages:  d.Messages,
		resolver:  d.Resolver,
		moderator: d.Moderator,
		notifier:  d.Notifier,
		locales:   d.Locales,
	}

	// The canonical transition table. Handlers only ever run against the
	// step recorded in the loaded session.
	e.steps = map[model.Step]stepHandler{
		model.StepConsent:          e.handleConsent,
		model.StepSelectLanguage:   e.handleSelectLanguage,
		model.StepRegisterName:     e.handleRegisterName,
		model.StepRegisterDistrict: e.handleRegisterDistrict,
		model.StepTopicMenu:        e.handleTopicMenu,
		model.StepAskQuestion:      e.handleAskQuestion,
		model.StepReturningOption:  e.handleReturningOption,
	}

	// Static back-navigation adjacency. Consent, the returning entry
	// point, and terminals have no predecessor.
	e.back = map[model.Step]model.Step{
		model.StepSelectLanguage:   model.StepConsent,
		model.StepRegisterName:     model.StepSelectLanguage,
		model.StepRegisterDistrict: model.StepRegisterName,
		model.StepTopicMenu:        model.StepRegisterDistrict,
		model.StepAskQuestion:      model.StepTopicMenu,
	}

	return e
}

// Handle processes one gateway callback and returns the response line.
// It never returns an error: every failure mode maps to a user-facing
// terminal reply.
func (e *Engine) Handle(ctx context.Context, req Request) Reply {
	canonical := phone.Normalize(req.PhoneNumber)
	input := lastSegment(req.Text)

	sess, err := e.store.Load(ctx, req.SessionID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return e.startConversation(ctx, req.SessionID, canonical)
	case errors.Is(err, session.ErrCorrupted):
		slog.Warn("corrupted session, restarting conversation", "sessionId", req.SessionID, "err", err)
		if dErr := e.store.Delete(ctx, req.SessionID); dErr != nil {
			slog.Warn("failed to delete corrupted session", "sessionId", req.SessionID, "err", dErr)
		}
		return e.startConversation(ctx, req.SessionID, canonical)
	case err != nil:
		slog.Error("session load failed", "sessionId", req.SessionID, "err", err)
		return end(msgGenericError)
	}

	// The session record, not the callback, is the source of truth for the
	// phone number, but keep it fresh in case the gateway re-sends it.
	if sess.PhoneNumber == "" {
		sess.PhoneNumber = canonical
	}

	if input == BackToken {
		if prev, ok := e.back[sess.Step]; ok {
			sess.Step = prev
			if err := e.store.Save(ctx, sess); err != nil {
				slog.Error("session save failed", "sessionId", sess.SessionID, "err", err)
				return end(msgGenericError)
			}
			return cont(e.promptFor(sess))
		}
		// No predecessor: fall through and let the handler treat the
		// token as ordinary input.
	}

	handler, ok := e.steps[sess.Step]
	if !ok {
		// KnownStep on load makes this unreachable, but a terminal reply
		// beats a panic on a transport with no error channel.
		slog.Error("no handler for step", "step", sess.Step)
		return end(msgGenericError)
	}
	return handler(ctx, sess, input)
}

// startConversation creates the session record for an unknown session id.
// A phone that already completed registration enters at the returning
// option; everyone else starts at consent.
func (e *Engine) startConversation(ctx context.Context, sessionID, canonical string) Reply {
	sess := &model.Session{
		SessionID:   sessionID,
		PhoneNumber: canonical,
		Step:        model.StepConsent,
		Language:    locale.DefaultLanguage,
	}

	user, err := e.users.FindByPhone(ctx, canonical)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		// Lookup trouble must not block participation; treat the caller
		// as new and let registration upsert sort it out.
		slog.Warn("user lookup failed, starting as new citizen", "err", err)
	}
	if user != nil {
		sess.Step = model.StepReturningOption
		if e.locales.Known(user.PreferredLanguage) {
			sess.Language = user.PreferredLanguage
		}
		sess.Name = user.FirstName
		sess.District = user.DistrictID
	}

	if err := e.store.Save(ctx, sess); err != nil {
		slog.Error("session save failed", "sessionId", sessionID, "err", err)
		return end(msgGenericError)
	}
	return cont(e.promptFor(sess))
}

// save persists the session and converts a failure into the terminal error
// reply so no handler can leave the conversation half-advanced silently.
func (e *Engine) save(ctx context.Context, sess *model.Session, reply Reply) Reply {
	if err := e.store.Save(ctx, sess); err != nil {
		slog.Error("session save failed", "sessionId", sess.SessionID, "err", err)
		return end(msgGenericError)
	}
	return reply
}

// finish deletes the session record; terminal replies go out even when the
// delete fails, because the gateway is closing the session regardless and
// the TTL will reap the leftover record.
func (e *Engine) finish(ctx context.Context, sessionID string, reply Reply) Reply {
	if err := e.store.Delete(ctx, sessionID); err != nil {
		slog.Warn("session delete failed", "sessionId", sessionID, "err", err)
	}
	return reply
}

// lastSegment extracts the newest input from the gateway-accumulated text.
func lastSegment(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	parts := strings.Split(text, "*")
	return strings.TrimSpace(parts[len(parts)-1])
}

// sanitizeQuestion strips control characters and enforces the length cap.
func sanitizeQuestion(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > MaxQuestionLength {
		s = string(runes[:MaxQuestionLength])
	}
	return s
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// splitName breaks a full name into first/last the way the registration
// flow stores it: first word and last word, middle names dropped.
func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	first = parts[0]
	if len(parts) > 1 {
		last = parts[len(parts)-1]
	}
	return first, last
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// promptFor renders the entry prompt of the session's current step. Used
// both when arriving at a step and when re-entering it via back-navigation.
func (e *Engine) promptFor(sess *model.Session) string {
	lang := sess.Language
	switch sess.Step {
	case model.StepConsent:
		return e.consentPrompt()
	case model.StepSelectLanguage:
		return e.locales.LanguageMenu()
	case model.StepRegisterName:
		return e.locales.Prompt(lang, "register_name")
	case model.StepRegisterDistrict:
		return e.locales.Prompt(lang, "register_district")
	case model.StepTopicMenu:
		return e.topicPrompt(lang)
	case model.StepAskQuestion:
		return e.locales.Prompt(lang, "question")
	case model.StepReturningOption:
		return e.returningPrompt(sess)
	}
	return e.consentPrompt()
}

func (e *Engine) consentPrompt() string {
	return fmt.Sprintf("%s\nDo you consent?\n1. Yes\n0. No",
		e.locales.Welcome(locale.DefaultLanguage))
}

func (e *Engine) topicPrompt(lang string) string {
	return e.locales.Prompt(lang, "ask_topic") + e.locales.FormatTopics(lang)
}

func (e *Engine) returningPrompt(sess *model.Session) string {
	greeting := "Welcome back"
	if sess.Name != "" {
		greeting = "Welcome back, " + sess.Name
	}
	return greeting + "!\n1. Continue\n2. Change language"
}
