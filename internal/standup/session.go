package standup

import (
	"errors"
	"strings"
	"time"

	"cadence.app/server/common/id"
	"cadence.app/server/internal/model"
)

var (
	ErrNoSession     = errors.New("no active session")
	ErrEmptyRoster   = errors.New("roster is empty")
	ErrSessionActive = errors.New("a session is already active")
)

// ReadinessResult is the outcome of a readiness confirmation attempt.
type ReadinessResult struct {
	Accepted bool
	Question string
}

// AnswerResult is the outcome of recording one answer.
type AnswerResult struct {
	NextQuestion         string
	CompletedParticipant bool
	SessionComplete      bool
}

// SkipResult is the outcome of skipping the currently indexed participant.
type SkipResult struct {
	SkippedID       string
	SessionComplete bool
}

// Begin starts a new session facilitated by facilitatorID. It fails when the
// roster is empty or a non-completed session already exists. The turn order is
// snapshotted from the roster, alphabetical by display name, and is fixed for
// the session's lifetime.
func Begin(state *model.ConversationState, facilitatorID string) (*model.StandupSession, error) {
	if len(state.RosterOrder) == 0 {
		return nil, ErrEmptyRoster
	}
	if state.ActiveSession != nil && !state.ActiveSession.Completed {
		return nil, ErrSessionActive
	}

	session := &model.StandupSession{
		ID:              id.NewString(),
		FacilitatorID:   facilitatorID,
		Order:           snapshotOrder(state),
		CurrentIndex:    0,
		CurrentQuestion: -1,
		AwaitingReady:   true,
		Responses:       make(map[string]*model.ParticipantResponse),
		StartedAt:       time.Now().UTC(),
	}

	state.ActiveSession = session
	return session, nil
}

// Active reports whether a session is running and still collecting answers.
func Active(state *model.ConversationState) bool {
	return state.ActiveSession != nil && !state.ActiveSession.Completed
}

// CurrentParticipant returns the id at the session's turn pointer.
func CurrentParticipant(state *model.ConversationState) (string, bool) {
	session := state.ActiveSession
	if session == nil || session.CurrentIndex >= len(session.Order) {
		return "", false
	}
	return session.Order[session.CurrentIndex], true
}

// MarkReady accepts a readiness confirmation from userID. Only the
// participant at the turn pointer may confirm, and only while the readiness
// gate is open; anything else is reported as not accepted with no state
// change. On success the first question is returned.
func MarkReady(state *model.ConversationState, userID string) (ReadinessResult, error) {
	session := state.ActiveSession
	if session == nil {
		return ReadinessResult{}, ErrNoSession
	}
	if session.Completed {
		return ReadinessResult{}, nil
	}

	current, ok := CurrentParticipant(state)
	if !ok || current != userID || !session.AwaitingReady {
		return ReadinessResult{}, nil
	}

	session.AwaitingReady = false
	session.CurrentQuestion = 0
	ensureResponse(session, userID)

	return ReadinessResult{Accepted: true, Question: Questions[0].Prompt}, nil
}

// RecordAnswer stores the trimmed answer text for the current question and
// advances the session: to the next question, to the next participant, or to
// completion. Answers from anyone but the current participant, or outside the
// answering state, are ignored.
func RecordAnswer(state *model.ConversationState, userID, text string) (AnswerResult, error) {
	session := state.ActiveSession
	if session == nil {
		return AnswerResult{}, ErrNoSession
	}
	if session.Completed {
		return AnswerResult{SessionComplete: true}, nil
	}

	current, ok := CurrentParticipant(state)
	if !ok || current != userID || session.AwaitingReady || session.CurrentQuestion < 0 {
		return AnswerResult{}, nil
	}

	response := ensureResponse(session, userID)
	response.Answers[session.CurrentQuestion] = strings.TrimSpace(text)

	if session.CurrentQuestion < len(Questions)-1 {
		session.CurrentQuestion++
		return AnswerResult{NextQuestion: Questions[session.CurrentQuestion].Prompt}, nil
	}

	advanceTurn(session)

	if session.Completed {
		return AnswerResult{CompletedParticipant: true, SessionComplete: true}, nil
	}
	return AnswerResult{CompletedParticipant: true}, nil
}

// SkipCurrent marks the currently indexed participant as skipped and advances
// the turn pointer. Valid from the readiness gate or mid-answer; the skip
// always targets whoever is currently indexed, regardless of who asked.
func SkipCurrent(state *model.ConversationState) (SkipResult, error) {
	session := state.ActiveSession
	if session == nil {
		return SkipResult{}, ErrNoSession
	}
	if session.Completed {
		return SkipResult{SessionComplete: true}, nil
	}

	current, ok := CurrentParticipant(state)
	if !ok {
		advanceTurn(session)
		return SkipResult{SessionComplete: session.Completed}, nil
	}

	response := ensureResponse(session, current)
	response.Skipped = true
	advanceTurn(session)

	return SkipResult{SkippedID: current, SessionComplete: session.Completed}, nil
}

// End force-completes the session early, keeping everything collected so far,
// and opens the publish confirmation gate.
func End(state *model.ConversationState) error {
	session := state.ActiveSession
	if session == nil {
		return ErrNoSession
	}
	session.Completed = true
	session.AwaitingPublishConfirmation = true
	return nil
}

// Clear unconditionally removes the session. Used after publish, discard, or
// an unrecoverable delivery error.
func Clear(state *model.ConversationState) {
	state.ActiveSession = nil
}

// advanceTurn resets the readiness gate and moves the pointer to the next
// participant; when the order is exhausted the session completes and enters
// the publish confirmation gate.
func advanceTurn(session *model.StandupSession) {
	session.CurrentQuestion = -1
	session.AwaitingReady = true
	session.CurrentIndex++

	if session.CurrentIndex >= len(session.Order) {
		session.Completed = true
		session.AwaitingPublishConfirmation = true
	}
}

func ensureResponse(session *model.StandupSession, participantID string) *model.ParticipantResponse {
	if response, ok := session.Responses[participantID]; ok {
		return response
	}
	response := &model.ParticipantResponse{
		Answers: make([]string, len(Questions)),
	}
	session.Responses[participantID] = response
	return response
}

func snapshotOrder(state *model.ConversationState) []string {
	order := make([]string, len(state.RosterOrder))
	copy(order, state.RosterOrder)
	return order
}
