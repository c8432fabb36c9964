package model

import "time"

// ParticipantResponse holds one participant's collected answers, one slot per
// fixed question. The slot is created when the participant confirms readiness
// (or when they are skipped).
type ParticipantResponse struct {
	Answers []string `json:"answers"`
	Skipped bool     `json:"skipped,omitempty"`
}

// StandupSession is one run of the turn-taking ritual. At most one exists per
// conversation. Order is snapshotted from the roster at start, alphabetical by
// display name, and never changes afterwards; CurrentIndex only increases.
type StandupSession struct {
	ID                          string                          `json:"id"`
	FacilitatorID               string                          `json:"facilitator_id"`
	Order                       []string                        `json:"order"`
	CurrentIndex                int                             `json:"current_index"`
	CurrentQuestion             int                             `json:"current_question"` // -1 between participants
	AwaitingReady               bool                            `json:"awaiting_ready"`
	Responses                   map[string]*ParticipantResponse `json:"responses"`
	StartedAt                   time.Time                       `json:"started_at"`
	AwaitingPublishConfirmation bool                            `json:"awaiting_publish_confirmation"`
	Completed                   bool                            `json:"completed"`
}
