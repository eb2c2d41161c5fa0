package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/civcon/ussd-engine/internal/model"
	"github.com/civcon/ussd-engine/internal/repo"
)

// Terminal lines are fixed English: by the time most of them fire the
// language may not be known, and the original platform shipped them
// untranslated.
const (
	msgGenericError    = "Sorry, an error occurred. Please try again."
	msgNoConsent       = "You must consent to continue."
	msgUserNotFound    = "User not found. Please register again."
	msgRejected        = "Your message was not sent: it did not pass our content checks."
	msgSent            = "Thank you! Your message has been sent to your MP or civic office."
	msgSentUnconfirmed = "Thank you! Your message has been saved, but SMS delivery could not be confirmed."
)

func (e *Engine) handleConsent(ctx context.Context, sess *model.Session, input string) Reply {
	switch input {
	case "":
		// Duplicate of the opening callback; same prompt, no transition.
		return cont(e.consentPrompt())
	case "1":
		sess.Step = model.StepSelectLanguage
		return e.save(ctx, sess, cont(e.locales.LanguageMenu()))
	default:
		return e.finish(ctx, sess.SessionID, end(msgNoConsent))
	}
}

func (e *Engine) handleSelectLanguage(ctx context.Context, sess *model.Session, input string) Reply {
	lang, ok := e.locales.LanguageFor(input)
	if !ok {
		return cont("Invalid choice.\n" + e.locales.LanguageMenu())
	}

	sess.Language = lang

	if sess.ChangingLanguage {
		// Returning citizen switching language: persist the preference
		// and rejoin at the topic menu.
		sess.ChangingLanguage = false
		if err := e.users.UpdateLanguage(ctx, sess.PhoneNumber, lang); err != nil {
			slog.Warn("preferred language update failed", "err", err)
		}
		sess.Step = model.StepTopicMenu
		return e.save(ctx, sess, cont(e.topicPrompt(lang)))
	}

	sess.Step = model.StepRegisterName
	return e.save(ctx, sess, cont(e.locales.Prompt(lang, "register_name")))
}

func (e *Engine) handleRegisterName(ctx context.Context, sess *model.Session, input string) Reply {
	if input == "" {
		return cont(e.locales.Prompt(sess.Language, "register_name"))
	}
	if !validName(input) {
		return cont(e.locales.Prompt(sess.Language, "register_name") +
			"\n(Use letters and spaces only.)")
	}

	sess.Name = titleCase(input)
	sess.Step = model.StepRegisterDistrict
	return e.save(ctx, sess, cont(e.locales.Prompt(sess.Language, "register_district")))
}

func (e *Engine) handleRegisterDistrict(ctx context.Context, sess *model.Session, input string) Reply {
	if input == "" {
		return cont(e.locales.Prompt(sess.Language, "register_district"))
	}

	// A district nobody represents is a typo more often than a real place;
	// make the caller retry instead of committing a registration that can
	// only ever route to the fallback.
	if rcpt := e.resolver.Resolve(ctx, input); rcpt.Fallback {
		return cont(e.locales.Prompt(sess.Language, "register_district") +
			"\n(District not recognized.)")
	}

	sess.District = titleCase(input)

	// The citizen row must exist before the state advances: phone number
	// is the idempotency key, so a crash-and-retry lands on the same row.
	first, last := splitName(sess.Name)
	if _, err := e.users.Create(ctx, model.User{
		FirstName:         first,
		LastName:          last,
		PhoneNumber:       sess.PhoneNumber,
		DistrictID:        sess.District,
		PreferredLanguage: sess.Language,
		Role:              model.RoleCitizen,
		IsActive:          true,
	}); err != nil {
		slog.Error("citizen creation failed", "err", err)
		return e.finish(ctx, sess.SessionID, end(msgGenericError))
	}

	sess.Step = model.StepTopicMenu
	return e.save(ctx, sess, cont(e.topicPrompt(sess.Language)))
}

func (e *Engine) handleTopicMenu(ctx context.Context, sess *model.Session, input string) Reply {
	if input == "" {
		return cont(e.topicPrompt(sess.Language))
	}

	topics := e.locales.Topics(sess.Language)
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > len(topics) {
		return cont("Invalid choice.\n" + e.topicPrompt(sess.Language))
	}

	sess.Topic = topics[n-1]
	sess.Step = model.StepAskQuestion
	return e.save(ctx, sess, cont(e.locales.Prompt(sess.Language, "question")))
}

func (e *Engine) handleReturningOption(ctx context.Context, sess *model.Session, input string) Reply {
	switch input {
	case "":
		return cont(e.returningPrompt(sess))
	case "1":
		sess.Step = model.StepTopicMenu
		return e.save(ctx, sess, cont(e.topicPrompt(sess.Language)))
	case "2":
		sess.ChangingLanguage = true
		sess.Step = model.StepSelectLanguage
		return e.save(ctx, sess, cont(e.locales.LanguageMenu()))
	default:
		return cont("Invalid choice.\n" + e.returningPrompt(sess))
	}
}

// handleAskQuestion runs the commit algorithm: moderate, resolve, persist,
// dispatch, delete. Persistence strictly precedes dispatch so a lost SMS
// can never lose the citizen's message.
func (e *Engine) handleAskQuestion(ctx context.Context, sess *model.Session, input string) Reply {
	question := sanitizeQuestion(input)
	if question == "" {
		return cont(e.locales.Prompt(sess.Language, "question"))
	}

	user, err := e.users.FindByPhone(ctx, sess.PhoneNumber)
	if errors.Is(err, repo.ErrNotFound) {
		return e.finish(ctx, sess.SessionID, end(msgUserNotFound))
	}
	if err != nil {
		slog.Error("citizen lookup failed", "err", err)
		return e.finish(ctx, sess.SessionID, end(msgGenericError))
	}

	topic := sess.Topic
	if topic == "" {
		topic = "General"
	}
	district := sess.District
	if district == "" {
		district = user.DistrictID
	}

	res := e.moderator.Classify(question, sess.Language)
	if res.Flagged() {
		// Persisted for audit, recipient unset, never forwarded.
		if _, err := e.messages.Create(ctx, model.Message{
			SenderID:      user.ID,
			Content:       question,
			DistrictID:    district,
			Topic:         topic,
			Flagged:       true,
			SpamScore:     res.SpamScore,
			UssdSessionID: sess.SessionID,
		}); err != nil {
			slog.Error("flagged message persist failed", "err", err)
			return e.finish(ctx, sess.SessionID, end(msgGenericError))
		}
		slog.Info("message flagged by moderation",
			"spam", res.IsSpam, "score", res.SpamScore, "offensive", res.IsOffensive)
		return e.finish(ctx, sess.SessionID, end(msgRejected))
	}

	rcpt := e.resolver.Resolve(ctx, district)

	if _, err := e.messages.Create(ctx, model.Message{
		SenderID:      user.ID,
		RecipientID:   rcpt.MPID,
		Content:       question,
		DistrictID:    district,
		Topic:         topic,
		SpamScore:     res.SpamScore,
		UssdSessionID: sess.SessionID,
	}); err != nil {
		slog.Error("message persist failed", "err", err)
		return e.finish(ctx, sess.SessionID, end(msgGenericError))
	}

	notice := fmt.Sprintf("New message from %s (%s) on %s: %s",
		senderName(user), district, topic, question)
	if err := e.notifier.Dispatch(ctx, rcpt.Phone, notice); err != nil {
		return e.finish(ctx, sess.SessionID, end(msgSentUnconfirmed))
	}

	return e.finish(ctx, sess.SessionID, end(msgSent))
}

func senderName(u *model.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return "a citizen"
}
