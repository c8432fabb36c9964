package model

// ConversationRef is the reusable send-handle for addressing a conversation
// outside an inbound turn (proactive summary delivery). Captured from an
// inbound activity, stored alongside the roster.
type ConversationRef struct {
	ConversationID string `json:"conversation_id"`
	ServiceURL     string `json:"service_url"`
	BotID          string `json:"bot_id"`
	ChannelName    string `json:"channel_name,omitempty"`
}

// ConversationState is the per-conversation blob the store persists. All
// stand-up state for a conversation lives here; mutations happen inside one
// read-modify-write transaction per inbound event.
type ConversationState struct {
	Roster           map[string]*RosterMember `json:"roster"`
	RosterOrder      []string                 `json:"roster_order"`
	SummaryChannelID string                   `json:"summary_channel_id,omitempty"`
	SummaryRef       *ConversationRef         `json:"summary_ref,omitempty"`
	ActiveSession    *StandupSession          `json:"active_session,omitempty"`
}

// NewConversationState returns an empty, usable state blob.
func NewConversationState() *ConversationState {
	return &ConversationState{
		Roster:      make(map[string]*RosterMember),
		RosterOrder: []string{},
	}
}

// Normalize repairs nil collections after JSON decoding of older blobs.
func (s *ConversationState) Normalize() {
	if s.Roster == nil {
		s.Roster = make(map[string]*RosterMember)
	}
	if s.RosterOrder == nil {
		s.RosterOrder = []string{}
	}
	if s.ActiveSession != nil && s.ActiveSession.Responses == nil {
		s.ActiveSession.Responses = make(map[string]*ParticipantResponse)
	}
}
