package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"cadence.app/server/common/logger"
	"cadence.app/server/core/config"
	"cadence.app/server/internal/botframework"
	"cadence.app/server/internal/model"
	"cadence.app/server/internal/standup"
	"cadence.app/server/internal/store"
)

// StandupService routes inbound activities to roster and session operations
// and delivers the resulting prompts and summaries.
type StandupService interface {
	HandleActivity(ctx context.Context, activity *botframework.Activity) error
}

type standupService struct {
	conversations store.ConversationStore
	sender        botframework.Sender
	cfg           config.StandupConfig
	logger        *slog.Logger
}

func NewStandupService(
	conversations store.ConversationStore,
	sender botframework.Sender,
	cfg config.StandupConfig,
	log *slog.Logger,
) StandupService {
	if log == nil {
		log = slog.Default()
	}
	return &standupService{
		conversations: conversations,
		sender:        sender,
		cfg:           cfg,
		logger:        log,
	}
}

// publishJob carries a rendered summary out of the state transaction so
// delivery happens after the session's fate is committed.
type publishJob struct {
	ref   model.ConversationRef
	pages []standup.SummaryPage
}

// turn accumulates the outbound side effects of one inbound activity. Replies
// are sent only after the state mutation commits, so a failed transaction
// never leaks half-applied prompts.
type turn struct {
	activity *botframework.Activity
	text     string
	lowered  string
	userID   string
	userName string

	replies []botframework.Message
	publish *publishJob
}

func (t *turn) reply(text string) {
	t.replies = append(t.replies, botframework.TextMessage(text))
}

func (t *turn) replyMention(msg botframework.Message) {
	t.replies = append(t.replies, msg)
}

func (s *standupService) HandleActivity(ctx context.Context, activity *botframework.Activity) error {
	if activity.Type != botframework.ActivityTypeMessage {
		return nil
	}
	text := activity.SanitizedText()
	if text == "" || activity.Conversation.ID == "" {
		return nil
	}

	t := &turn{
		activity: activity,
		text:     text,
		lowered:  strings.ToLower(text),
		userID:   activity.SenderKey(),
		userName: activity.SenderName(),
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: logger.Ptr(activity.Conversation.ID),
		ActivityID:     logger.Ptr(activity.ID),
		UserID:         logger.Ptr(t.userID),
		Component:      "standup_service",
	})

	err := s.conversations.Mutate(ctx, activity.Conversation.ID, func(state *model.ConversationState) error {
		return s.route(ctx, state, t)
	})
	if err != nil {
		return fmt.Errorf("applying activity %s: %w", activity.ID, err)
	}

	return s.deliver(ctx, t)
}

// route dispatches one sanitized message. Session traffic is consulted first
// so free-text answers never collide with command names.
func (s *standupService) route(ctx context.Context, state *model.ConversationState, t *turn) error {
	if state.ActiveSession != nil {
		if handled := s.routeSession(ctx, state, t); handled {
			return nil
		}
	}

	command := firstToken(t.lowered)
	ctx = logger.WithLogFields(ctx, logger.LogFields{Command: logger.Ptr(command)})

	switch command {
	case "help":
		t.reply(helpMessage)
	case "join":
		s.handleJoin(state, t)
	case "leave", "quit":
		s.handleLeave(state, t)
	case "remove":
		s.handleRemove(state, t)
	case "members", "team", "participants":
		s.handleMembers(state, t)
	case "report":
		s.handleReport(state, t)
	case "where":
		if strings.Contains(t.lowered, "report") {
			s.handleWhereReport(state, t)
		}
	case "start":
		return s.handleStart(ctx, state, t)
	case "end":
		// With a session this is handled above; without one there is
		// nothing to stop.
		t.reply("There is no active stand-up right now.")
	}
	return nil
}

func (s *standupService) handleJoin(state *model.ConversationState, t *turn) {
	member := model.RosterMember{
		ID:          t.userID,
		Name:        t.userName,
		DirectoryID: t.activity.From.AADObjectID,
	}
	if standup.UpsertMember(state, member) {
		t.reply(fmt.Sprintf("🎉 Welcome aboard, %s! I'll include you in the next stand-up.", member.Name))
	} else {
		t.reply(fmt.Sprintf("✅ You're already on the roster, %s.", member.Name))
	}
}

func (s *standupService) handleLeave(state *model.ConversationState, t *turn) {
	if removed := standup.RemoveMember(state, t.userID); removed != nil {
		t.reply(fmt.Sprintf("👋 Got it, %s. I've taken you off the roster.", t.userName))
	} else {
		t.reply("🤔 I didn't have you on the roster, but I'm here if you change your mind.")
	}
}

func (s *standupService) handleRemove(state *model.ConversationState, t *turn) {
	target := s.resolveRemovalTarget(state, t)
	if target == nil {
		t.reply("I could not figure out who to remove. Mention the teammate or spell their display name.")
		return
	}

	if removed := standup.RemoveMember(state, target.ID); removed != nil {
		t.reply(fmt.Sprintf("🧹 Removed %s from the roster.", removed.Name))
	} else {
		t.reply(fmt.Sprintf("I couldn't find %s on the roster.", target.Name))
	}
}

func (s *standupService) resolveRemovalTarget(state *model.ConversationState, t *turn) *model.RosterMember {
	if mention := t.activity.UserMention(); mention != nil {
		key := mention.AADObjectID
		if key == "" {
			key = mention.ID
		}
		if member, ok := state.Roster[key]; ok {
			return member
		}
		// Report the miss under the mentioned name.
		return &model.RosterMember{ID: key, Name: mention.Name}
	}

	args := strings.TrimSpace(strings.TrimPrefix(t.text, firstToken(t.text)))
	if args == "" {
		return nil
	}
	if member := standup.FindMemberByName(state, args); member != nil {
		return member
	}
	return &model.RosterMember{ID: args, Name: args}
}

func (s *standupService) handleMembers(state *model.ConversationState, t *turn) {
	members := standup.Members(state)
	if len(members) == 0 {
		t.reply("The roster is empty. Ask your teammates to send `join` to participate.")
		return
	}
	names := make([]string, len(members))
	for i, member := range members {
		names[i] = member.Name
	}
	t.reply("Current roster: " + strings.Join(names, ", "))
}

var channelHash = regexp.MustCompile(`(?i)#([a-z0-9-_]+)`)

func (s *standupService) handleReport(state *model.ConversationState, t *turn) {
	if channel := t.activity.ChannelMention(); channel != nil && channel.ID != t.activity.Conversation.ID {
		state.SummaryChannelID = channel.ID
		state.SummaryRef = nil
		t.reply(fmt.Sprintf(
			"I'll aim to publish summaries in %s. Please run `report here` from that channel so I can capture its conversation reference.",
			channel.Name,
		))
		return
	}
	if match := channelHash.FindStringSubmatch(t.text); match != nil {
		state.SummaryChannelID = "#" + match[1]
		state.SummaryRef = nil
		t.reply(fmt.Sprintf(
			"I'll aim to publish summaries in #%s. Please run `report here` from that channel so I can capture its conversation reference.",
			match[1],
		))
		return
	}

	ref := t.activity.Ref()
	state.SummaryChannelID = ref.ConversationID
	state.SummaryRef = &ref
	t.reply("Summaries will be posted right here.")
}

func (s *standupService) handleWhereReport(state *model.ConversationState, t *turn) {
	channelID := state.SummaryChannelID
	if channelID == "" {
		channelID = t.activity.Conversation.ID
	}
	switch {
	case channelID == "":
		t.reply("I'm not sure yet. Use `report here` to set this channel.")
	case state.SummaryRef != nil && state.SummaryRef.ConversationID == channelID:
		t.reply("I'll publish summaries in this channel.")
	default:
		t.reply(fmt.Sprintf(
			"I plan to report in channel %s. Run `report here` from there if you'd like me to store its reference.",
			state.SummaryChannelID,
		))
	}
}

func (s *standupService) handleStart(ctx context.Context, state *model.ConversationState, t *turn) error {
	if standup.Active(state) {
		t.reply("A stand-up is already in progress. Use `end` if you need to stop it.")
		return nil
	}

	// Default the summary destination to the run's own conversation and
	// capture a send-handle while we have one.
	if state.SummaryChannelID == "" {
		state.SummaryChannelID = t.activity.Conversation.ID
	}
	if state.SummaryRef == nil && state.SummaryChannelID == t.activity.Conversation.ID {
		ref := t.activity.Ref()
		state.SummaryRef = &ref
	}

	session, err := standup.Begin(state, t.userID)
	if err != nil {
		switch {
		case errors.Is(err, standup.ErrEmptyRoster):
			t.reply("Roster is empty. Add teammates before starting a stand-up.")
			return nil
		case errors.Is(err, standup.ErrSessionActive):
			t.reply("A stand-up is already in progress. Use `end` if you need to stop it.")
			return nil
		default:
			return err
		}
	}

	s.logger.InfoContext(ctx, "standup started",
		"session_id", session.ID,
		"participants", len(session.Order),
	)

	t.reply(fmt.Sprintf("🚀 Stand-up started! I'll check in with %d teammates in alphabetical order.", len(session.Order)))
	s.promptCurrentParticipant(state, t)
	return nil
}

// routeSession handles messages while a session exists. It reports whether
// the message was consumed; unconsumed messages fall through to command
// routing.
func (s *standupService) routeSession(ctx context.Context, state *model.ConversationState, t *turn) bool {
	session := state.ActiveSession

	if session.AwaitingPublishConfirmation {
		return s.routePublishGate(ctx, state, t)
	}

	currentID, ok := standup.CurrentParticipant(state)
	if !ok {
		return false
	}

	// Skip and end are accepted from anyone while a run is collecting.
	if t.lowered == "skip" {
		s.skipAndAdvance(ctx, state, t, currentID)
		return true
	}
	if t.lowered == "end" {
		if err := standup.End(state); err == nil {
			t.reply("Stand-up paused. Reply with `yes` to publish the summary or `no` to discard it.")
		}
		return true
	}

	if currentID == t.userID {
		if session.AwaitingReady {
			return s.routeReadiness(ctx, state, t)
		}
		return s.routeAnswer(ctx, state, t)
	}

	// Anyone may wave the current participant through while the readiness
	// gate is open.
	if session.AwaitingReady && standup.IsNegative(t.lowered) {
		s.skipAndAdvance(ctx, state, t, currentID)
		return true
	}

	return false
}

func (s *standupService) routeReadiness(ctx context.Context, state *model.ConversationState, t *turn) bool {
	if standup.IsAffirmative(t.lowered) {
		result, err := standup.MarkReady(state, t.userID)
		if err != nil || !result.Accepted {
			return true
		}
		if member, ok := state.Roster[t.userID]; ok {
			t.replyMention(botframework.MentionMessage(member, result.Question))
		} else {
			t.reply(result.Question)
		}
		return true
	}

	if standup.IsNegative(t.lowered) {
		s.skipAndAdvance(ctx, state, t, t.userID)
		return true
	}

	t.reply("Just let me know when you are ready with a quick `yes`, or say `skip` to move on.")
	return true
}

func (s *standupService) routeAnswer(ctx context.Context, state *model.ConversationState, t *turn) bool {
	result, err := standup.RecordAnswer(state, t.userID, t.text)
	if err != nil {
		return true
	}

	if result.NextQuestion != "" {
		if member, ok := state.Roster[t.userID]; ok {
			t.replyMention(botframework.MentionMessage(member, result.NextQuestion))
		} else {
			t.reply(result.NextQuestion)
		}
		return true
	}

	if result.CompletedParticipant {
		t.reply("✅ Thank you! I captured your update.")
	}
	if result.SessionComplete {
		s.announceCompletion(ctx, state, t)
		return true
	}

	s.promptCurrentParticipant(state, t)
	return true
}

func (s *standupService) routePublishGate(ctx context.Context, state *model.ConversationState, t *turn) bool {
	session := state.ActiveSession

	if session.FacilitatorID != t.userID {
		t.reply("Thanks! I just need the facilitator to confirm publication.")
		return true
	}

	if standup.IsAffirmative(t.lowered) || t.lowered == "publish" {
		s.preparePublish(ctx, state, t)
		return true
	}

	if standup.IsNegative(t.lowered) || t.lowered == "discard" || t.lowered == "cancel" || t.lowered == "skip" {
		standup.Clear(state)
		t.reply("👍 No worries—summary discarded. The slate is clear.")
		return true
	}

	t.reply("Please reply with `yes` to publish or `no` to skip.")
	return true
}

func (s *standupService) skipAndAdvance(ctx context.Context, state *model.ConversationState, t *turn, currentID string) {
	result, err := standup.SkipCurrent(state)
	if err != nil {
		return
	}

	name := "Unknown teammate"
	if member, ok := state.Roster[currentID]; ok {
		name = member.Name
	}
	t.reply(fmt.Sprintf("⏭️ Skipping %s.", name))

	if result.SessionComplete {
		s.announceCompletion(ctx, state, t)
		return
	}
	s.promptCurrentParticipant(state, t)
}

func (s *standupService) promptCurrentParticipant(state *model.ConversationState, t *turn) {
	currentID, ok := standup.CurrentParticipant(state)
	if !ok {
		return
	}
	member, ok := state.Roster[currentID]
	if !ok {
		return
	}
	t.replyMention(botframework.MentionMessage(member, "are you ready?"))
}

func (s *standupService) announceCompletion(ctx context.Context, state *model.ConversationState, t *turn) {
	s.logger.InfoContext(ctx, "standup complete, awaiting publish confirmation",
		"session_id", state.ActiveSession.ID,
	)
	t.reply("🎉 That wraps everyone! Reply with `yes` to publish the summary or `no` to discard it.")
}

// preparePublish renders the summary and clears the session inside the
// transaction; the actual delivery happens after commit. The session is gone
// either way, matching the no-retry delivery contract.
func (s *standupService) preparePublish(ctx context.Context, state *model.ConversationState, t *turn) {
	session := state.ActiveSession

	ref := state.SummaryRef
	if ref == nil || ref.ConversationID == "" {
		fallback := t.activity.Ref()
		if fallback.ConversationID == "" {
			standup.Clear(state)
			t.reply("I couldn't find a channel to post the summary. Run `report here` in the target channel and start again.")
			return
		}
		ref = &fallback
	}

	pages := standup.BuildPages(state, session, s.cfg.MaxPageLength)
	s.logger.InfoContext(ctx, "publishing standup summary",
		"session_id", session.ID,
		"pages", len(pages),
		"destination", ref.ConversationID,
	)

	t.publish = &publishJob{ref: *ref, pages: pages}
	standup.Clear(state)
}

// deliver sends the turn's collected replies, then the summary pages if a
// publish was prepared. Delivery is best-effort: a failed summary send gets
// one apologetic reply and no retry.
func (s *standupService) deliver(ctx context.Context, t *turn) error {
	for _, msg := range t.replies {
		if err := s.sender.Reply(ctx, t.activity, msg); err != nil {
			return fmt.Errorf("sending reply: %w", err)
		}
	}

	if t.publish == nil {
		return nil
	}

	span := logger.StartSpan(ctx, "standup.publish_summary")
	defer span.End()

	for _, page := range t.publish.pages {
		msg := botframework.TextMessage(fmt.Sprintf("**%s**\n\n%s", page.Title, page.Content))
		if err := s.sender.SendTo(span.Context(), t.publish.ref, msg); err != nil {
			span.RecordError(err)
			s.logger.ErrorContext(ctx, "summary delivery failed", "error", err)
			if replyErr := s.sender.Reply(ctx, t.activity,
				botframework.TextMessage("⚠️ I couldn't publish the summary. Please try again or check my permissions."),
			); replyErr != nil {
				return fmt.Errorf("reporting failed publish: %w", replyErr)
			}
			return nil
		}
	}

	return s.sender.Reply(ctx, t.activity, botframework.TextMessage("📬 Summary posted! Nice work team."))
}

func firstToken(text string) string {
	if fields := strings.Fields(text); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

const helpMessage = "Here's how I can help with stand-ups:\n" +
	"- `join` / `leave` — manage your roster membership.\n" +
	"- `remove @teammate` — take someone else off the roster.\n" +
	"- `members` — list everyone currently participating.\n" +
	"- `report here` or `report in #channel` — choose where summaries go.\n" +
	"- `where do you report?` — confirm the summary destination.\n" +
	"- `start` — kick off a stand-up.\n" +
	"- `skip` — move past the queued teammate before questions begin.\n" +
	"- `end` — stop the stand-up and choose whether to publish the summary.\n" +
	"- During your turn just answer the three questions as I ask them."
