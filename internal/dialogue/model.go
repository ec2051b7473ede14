package dialogue

import (
	"time"

	"github.com/google/uuid"
)

// State is the derived dialogue phase of a session.
type State string

const (
	// StateAwaitingSymptoms: fewer confirmed symptoms than the narrowing gate.
	StateAwaitingSymptoms State = "awaiting_symptoms"
	// StateNarrowing: enough symptoms, still asking follow-up questions.
	StateNarrowing State = "narrowing"
	// StateReadyToDiagnose: the termination policy is met.
	StateReadyToDiagnose State = "ready_to_diagnose"
)

// SessionMeta is the fixed-shape scratch state the controller keeps between
// turns. Candidates == nil means "not initialized yet"; an empty non-nil
// slice means the evidence was contradictory and narrowing is over.
type SessionMeta struct {
	Candidates        []string `json:"candidates"` // no omitempty: nil (unset) and [] (contradictory) differ
	CandidateSymptoms []string `json:"candidate_symptoms,omitempty"`
	Asked             []string `json:"asked,omitempty"`
}

// Session is the unit of conversational state.
type Session struct {
	ID        uuid.UUID `json:"session_id" db:"id"`
	DeviceID  string    `json:"device_id" db:"device_id"`
	UserEmail string    `json:"user_email,omitempty" db:"user_email"` // empty pre-authentication
	Topic     string    `json:"topic,omitempty" db:"topic"`

	// Symptoms holds confirmed-present canonical symptoms, kept sorted and
	// unique. PendingQuestions is the FIFO of symptoms awaiting a yes/no
	// answer; only the front is surfaced to the client.
	Symptoms         []string    `json:"symptoms" db:"symptoms"`
	PendingQuestions []string    `json:"pending_questions" db:"pending_questions"`
	Meta             SessionMeta `json:"meta" db:"meta"`

	// Version backs the repository's optimistic concurrency check; two
	// in-flight turns on one session must not both commit.
	Version   int       `json:"-" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// State derives the dialogue phase from the session's evidence.
func (s *Session) State(minSymptoms, maxSymptoms int) State {
	switch {
	case len(s.Symptoms) < minSymptoms:
		return StateAwaitingSymptoms
	case len(s.Symptoms) >= maxSymptoms:
		return StateReadyToDiagnose
	case s.Meta.Candidates != nil && len(s.Meta.CandidateSymptoms) == 0 && len(s.PendingQuestions) == 0:
		return StateReadyToDiagnose
	default:
		return StateNarrowing
	}
}

// Reset returns the session to its empty initial state.
func (s *Session) Reset() {
	s.Symptoms = nil
	s.PendingQuestions = nil
	s.Meta = SessionMeta{}
}

// Message is one entry of a session's ordered log.
type Message struct {
	ID        int64     `json:"id" db:"id"`
	SessionID uuid.UUID `json:"session_id" db:"session_id"`
	IsUser    bool      `json:"is_user" db:"is_user"`
	Text      string    `json:"text" db:"text"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
