package model

import (
	"time"
)

// Step identifies where a USSD conversation currently is. Stored verbatim in
// the session record, so values must stay stable across deploys.
type Step string

const (
	StepConsent          Step = "consent"
	StepSelectLanguage   Step = "select_language"
	StepRegisterName     Step = "register_name"
	StepRegisterDistrict Step = "register_district"
	StepTopicMenu        Step = "topic_menu"
	StepAskQuestion      Step = "ask_question"
	StepReturningOption  Step = "returning_language_option"
)

// KnownStep reports whether s is one of the steps the engine dispatches on.
// A session loaded with anything else is treated as corrupted.
func KnownStep(s Step) bool {
	switch s {
	case StepConsent, StepSelectLanguage, StepRegisterName,
		StepRegisterDistrict, StepTopicMenu, StepAskQuestion, StepReturningOption:
		return true
	}
	return false
}

// Session is the externally persisted record of one in-flight conversation.
// One record per gateway session id; deleted on terminal transitions,
// otherwise reaped by the store TTL.
type Session struct {
	SessionID   string `json:"sessionId"`
	PhoneNumber string `json:"phoneNumber"` // canonical (+256...)
	Step        Step   `json:"step"`
	Language    string `json:"language"`

	// Partial registration/answer data collected so far.
	Name     string `json:"name,omitempty"`
	District string `json:"district,omitempty"`
	Topic    string `json:"topic,omitempty"`

	// ChangingLanguage marks a returning citizen who asked to switch
	// language, so select_language jumps back to the topic menu.
	ChangingLanguage bool `json:"changingLanguage,omitempty"`
}

type User struct {
	ID                int64
	FirstName         string
	LastName          string
	PhoneNumber       string // canonical, unique
	DistrictID        string
	PreferredLanguage string
	Role              string
	IsActive          bool
}

const RoleCitizen = "citizen"

type Message struct {
	ID            int64
	SenderID      int64
	RecipientID   *int64 // resolved MP id, nil when routed to the fallback
	Content       string
	DistrictID    string
	Topic         string
	Flagged       bool
	SpamScore     float64
	UssdSessionID string // commit idempotency key
	CreatedAt     time.Time
}

type MP struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DistrictID  string `json:"districtId"`
	PhoneNumber string `json:"phoneNumber"`
}

// Recipient is the routing result for a committed message: either a matched
// MP or the configured fallback identity.
type Recipient struct {
	MPID     *int64
	Name     string
	Phone    string
	Fallback bool
}

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxSent       OutboxStatus = "sent"
	OutboxFailed     OutboxStatus = "failed"
)

// OutboxEntry is an SMS whose first delivery attempt failed, queued for
// retry by the scheduler.
type OutboxEntry struct {
	ID           string // uuid
	Phone        string
	Content      string
	Status       OutboxStatus
	AttemptCount int
	LastError    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
