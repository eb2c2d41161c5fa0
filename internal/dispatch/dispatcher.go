// Package dispatch sends outbound SMS notifications. Delivery is
// best-effort from the conversation's point of view: a failed send is logged
// and queued for retry, never surfaced as a fatal error, because the
// citizen's message is already committed by the time dispatch runs.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/civcon/ussd-engine/internal/phone"
	"github.com/civcon/ussd-engine/internal/repo"
)

type SendClient interface {
	Send(ctx context.Context, phoneNumber, message string) (remoteMessageID string, err error)
}

type Dispatcher struct {
	client     SendClient
	outbox     repo.OutboxRepository
	contentMax int
}

func New(client SendClient, outbox repo.OutboxRepository, contentMax int) *Dispatcher {
	return &Dispatcher{
		client:     client,
		outbox:     outbox,
		contentMax: contentMax,
	}
}

// Dispatch tries to deliver once. On failure the SMS is queued for the
// retry loop and the error is returned so the caller can soften its reply
// ("saved, delivery unconfirmed") — it must not treat it as fatal.
func (d *Dispatcher) Dispatch(ctx context.Context, rawPhone, text string) error {
	to := phone.Normalize(rawPhone)
	if to == "" {
		return fmt.Errorf("no recipient phone")
	}
	text = truncate(text, d.contentMax)

	remoteID, err := d.client.Send(ctx, to, text)
	if err != nil {
		slog.Warn("sms dispatch failed, queueing for retry", "phone", to, "err", err)
		if qErr := d.outbox.Enqueue(ctx, to, text, err.Error()); qErr != nil {
			slog.Error("sms outbox enqueue failed", "phone", to, "err", qErr)
		}
		return err
	}

	slog.Info("sms dispatched", "phone", to, "remoteMessageId", remoteID)
	return nil
}

// ProcessBatch retries queued messages. Driven by the scheduler tick.
func (d *Dispatcher) ProcessBatch(ctx context.Context, batchSize int) (sent, failed int) {
	entries, err := d.outbox.ClaimPending(ctx, batchSize)
	if err != nil {
		slog.Error("sms outbox claim failed", "err", err)
		return 0, 0
	}

	for _, e := range entries {
		remoteID, err := d.client.Send(ctx, e.Phone, e.Content)
		if err != nil {
			failed++
			if mErr := d.outbox.MarkFailed(ctx, e.ID, err.Error()); mErr != nil {
				slog.Error("sms outbox mark failed errored", "id", e.ID, "err", mErr)
			}
			continue
		}

		sent++
		slog.Info("queued sms delivered", "id", e.ID, "remoteMessageId", remoteID)
		if mErr := d.outbox.MarkSent(ctx, e.ID); mErr != nil {
			slog.Error("sms outbox mark sent errored", "id", e.ID, "err", mErr)
		}
	}
	return sent, failed
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
