package service_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cadence.app/server/common/id"
	"cadence.app/server/core/config"
	"cadence.app/server/internal/botframework"
	"cadence.app/server/internal/model"
	"cadence.app/server/internal/service"
	"cadence.app/server/internal/store"
)

// Mock ConversationStore backed by an in-memory map.
type mockConversationStore struct {
	states map[string]*model.ConversationState
}

func newMockConversationStore() *mockConversationStore {
	return &mockConversationStore{states: make(map[string]*model.ConversationState)}
}

func (m *mockConversationStore) Get(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	if state, ok := m.states[conversationID]; ok {
		return state, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockConversationStore) Mutate(ctx context.Context, conversationID string, fn func(state *model.ConversationState) error) error {
	state, ok := m.states[conversationID]
	if !ok {
		state = model.NewConversationState()
	}
	if err := fn(state); err != nil {
		return err
	}
	m.states[conversationID] = state
	return nil
}

func (m *mockConversationStore) Delete(ctx context.Context, conversationID string) error {
	delete(m.states, conversationID)
	return nil
}

// Mock Sender recording every outbound message.
type sentMessage struct {
	text      string
	proactive bool
	ref       model.ConversationRef
}

type mockSender struct {
	sent     []sentMessage
	sendToFn func(ctx context.Context, ref model.ConversationRef, msg botframework.Message) error
}

func (m *mockSender) Reply(ctx context.Context, incoming *botframework.Activity, msg botframework.Message) error {
	m.sent = append(m.sent, sentMessage{text: msg.Text})
	return nil
}

func (m *mockSender) SendTo(ctx context.Context, ref model.ConversationRef, msg botframework.Message) error {
	if m.sendToFn != nil {
		if err := m.sendToFn(ctx, ref, msg); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, sentMessage{text: msg.Text, proactive: true, ref: ref})
	return nil
}

func (m *mockSender) texts() []string {
	texts := make([]string, len(m.sent))
	for i, msg := range m.sent {
		texts[i] = msg.text
	}
	return texts
}

func (m *mockSender) reset() {
	m.sent = nil
	m.sendToFn = nil
}

var _ = Describe("StandupService", func() {
	var (
		svc    service.StandupService
		states *mockConversationStore
		sender *mockSender
		ctx    context.Context
	)

	const conversationID = "19:standup@thread"

	activityFrom := func(userID, name, text string) *botframework.Activity {
		return &botframework.Activity{
			Type:         botframework.ActivityTypeMessage,
			ID:           "act-" + userID + "-" + text,
			ServiceURL:   "https://smba.example.com/emea",
			From:         botframework.ChannelAccount{ID: userID, Name: name},
			Recipient:    botframework.ChannelAccount{ID: "bot-1", Name: "Cadence"},
			Conversation: botframework.ConversationAccount{ID: conversationID},
			Text:         text,
		}
	}

	send := func(userID, name, text string) {
		err := svc.HandleActivity(ctx, activityFrom(userID, name, text))
		Expect(err).NotTo(HaveOccurred())
	}

	lastText := func() string {
		Expect(sender.sent).NotTo(BeEmpty())
		return sender.sent[len(sender.sent)-1].text
	}

	BeforeEach(func() {
		ctx = context.Background()
		states = newMockConversationStore()
		sender = &mockSender{}

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		svc = service.NewStandupService(states, sender, config.StandupConfig{MaxPageLength: 4000}, nil)
	})

	Describe("roster commands", func() {
		It("welcomes a new member and recognizes a repeat join", func() {
			send("alice", "Alice", "join")
			Expect(lastText()).To(ContainSubstring("Welcome aboard, Alice"))

			send("alice", "Alice", "join")
			Expect(lastText()).To(ContainSubstring("already on the roster"))

			state := states.states[conversationID]
			Expect(state.Roster).To(HaveLen(1))
		})

		It("lists members in alphabetical order", func() {
			send("carol", "carol", "join")
			send("alice", "Alice", "join")
			sender.reset()

			send("alice", "Alice", "members")
			Expect(lastText()).To(Equal("Current roster: Alice, carol"))
		})

		It("reports an empty roster", func() {
			send("alice", "Alice", "team")
			Expect(lastText()).To(ContainSubstring("roster is empty"))
		})

		It("removes a member by name, case-insensitively", func() {
			send("bob", "Bob", "join")
			sender.reset()

			send("alice", "Alice", "remove bob")
			Expect(lastText()).To(ContainSubstring("Removed Bob"))
			Expect(states.states[conversationID].Roster).To(BeEmpty())
		})

		It("replies couldn't find without mutating the roster on a miss", func() {
			send("bob", "Bob", "join")
			sender.reset()

			send("alice", "Alice", "remove Mallory")
			Expect(lastText()).To(ContainSubstring("couldn't find Mallory"))
			Expect(states.states[conversationID].Roster).To(HaveLen(1))
		})

		It("removes a mentioned member", func() {
			send("bob", "Bob", "join")
			sender.reset()

			activity := activityFrom("alice", "Alice", "remove <at>Bob</at>")
			activity.Entities = []botframework.Entity{{
				Type:      "mention",
				Text:      "<at>Bob</at>",
				Mentioned: &botframework.Mentioned{ID: "bob", Name: "Bob"},
			}}
			Expect(svc.HandleActivity(ctx, activity)).To(Succeed())
			Expect(lastText()).To(ContainSubstring("Removed Bob"))
		})
	})

	Describe("summary destination", func() {
		It("captures the current conversation on report here", func() {
			send("alice", "Alice", "report here")
			Expect(lastText()).To(Equal("Summaries will be posted right here."))

			state := states.states[conversationID]
			Expect(state.SummaryChannelID).To(Equal(conversationID))
			Expect(state.SummaryRef).NotTo(BeNil())
			Expect(state.SummaryRef.ServiceURL).To(Equal("https://smba.example.com/emea"))
		})

		It("records a channel mention but asks for its reference", func() {
			activity := activityFrom("alice", "Alice", "report in <at>standups</at>")
			activity.Entities = []botframework.Entity{{
				Type:      "mention",
				Text:      "<at>standups</at>",
				Mentioned: &botframework.Mentioned{ID: "19:other@thread", Name: "standups", Role: "channel"},
			}}
			Expect(svc.HandleActivity(ctx, activity)).To(Succeed())
			Expect(lastText()).To(ContainSubstring("run `report here` from that channel"))

			state := states.states[conversationID]
			Expect(state.SummaryChannelID).To(Equal("19:other@thread"))
			Expect(state.SummaryRef).To(BeNil())
		})

		It("answers where do you report", func() {
			send("alice", "Alice", "report here")
			sender.reset()

			send("alice", "Alice", "where do you report?")
			Expect(lastText()).To(Equal("I'll publish summaries in this channel."))
		})
	})

	Describe("session lifecycle", func() {
		BeforeEach(func() {
			send("alice", "Alice", "join")
			send("bob", "Bob", "join")
			sender.reset()
		})

		It("refuses to start with an empty roster", func() {
			empty := newMockConversationStore()
			svc = service.NewStandupService(empty, sender, config.StandupConfig{MaxPageLength: 4000}, nil)

			send("alice", "Alice", "start")
			Expect(lastText()).To(ContainSubstring("Roster is empty"))
		})

		It("refuses to start twice", func() {
			send("alice", "Alice", "start")
			sender.reset()

			send("bob", "Bob", "start")
			Expect(lastText()).To(ContainSubstring("already in progress"))
		})

		It("walks two participants through answers and a skip, then publishes", func() {
			send("alice", "Alice", "start")
			texts := sender.texts()
			Expect(texts[0]).To(ContainSubstring("check in with 2 teammates"))
			Expect(texts[1]).To(Equal("<at>Alice</at> are you ready?"))
			sender.reset()

			send("alice", "Alice", "yes")
			Expect(lastText()).To(Equal("<at>Alice</at> What have you done since the last standup?"))

			send("alice", "Alice", "shipped X")
			Expect(lastText()).To(Equal("<at>Alice</at> What are you working on now?"))

			send("alice", "Alice", "nothing")
			Expect(lastText()).To(Equal("<at>Alice</at> Anything in your way?"))

			sender.reset()
			send("alice", "Alice", "none")
			texts = sender.texts()
			Expect(texts[0]).To(ContainSubstring("captured your update"))
			Expect(texts[1]).To(Equal("<at>Bob</at> are you ready?"))

			sender.reset()
			send("bob", "Bob", "skip")
			texts = sender.texts()
			Expect(texts[0]).To(ContainSubstring("Skipping Bob"))
			Expect(texts[1]).To(ContainSubstring("That wraps everyone"))

			session := states.states[conversationID].ActiveSession
			Expect(session.Completed).To(BeTrue())
			Expect(session.AwaitingPublishConfirmation).To(BeTrue())

			sender.reset()
			send("alice", "Alice", "yes")

			var summary *sentMessage
			for i := range sender.sent {
				if sender.sent[i].proactive {
					summary = &sender.sent[i]
					break
				}
			}
			Expect(summary).NotTo(BeNil())
			Expect(summary.ref.ConversationID).To(Equal(conversationID))
			Expect(summary.text).To(ContainSubstring("Standup for"))
			Expect(summary.text).To(ContainSubstring("## Status for Alice ##"))
			Expect(summary.text).To(ContainSubstring("shipped X"))
			Expect(summary.text).To(ContainSubstring("## Status for Bob ##\n_(Skipped)_"))
			Expect(strings.Index(summary.text, "Alice")).To(BeNumerically("<", strings.Index(summary.text, "Bob")))
			Expect(lastText()).To(ContainSubstring("Summary posted"))
			Expect(states.states[conversationID].ActiveSession).To(BeNil())
		})

		It("nudges the current participant on unrecognized readiness text", func() {
			send("alice", "Alice", "start")
			sender.reset()

			send("alice", "Alice", "give me a minute")
			Expect(lastText()).To(ContainSubstring("quick `yes`"))
			Expect(states.states[conversationID].ActiveSession.AwaitingReady).To(BeTrue())
		})

		It("lets anyone skip the queued participant", func() {
			send("alice", "Alice", "start")
			sender.reset()

			send("bob", "Bob", "skip")
			Expect(sender.texts()[0]).To(ContainSubstring("Skipping Alice"))
			Expect(states.states[conversationID].ActiveSession.CurrentIndex).To(Equal(1))
		})

		It("pauses on end and keeps collected answers", func() {
			send("alice", "Alice", "start")
			send("alice", "Alice", "yes")
			send("alice", "Alice", "shipped X")
			sender.reset()

			send("alice", "Alice", "end")
			Expect(lastText()).To(ContainSubstring("Stand-up paused"))

			session := states.states[conversationID].ActiveSession
			Expect(session.Completed).To(BeTrue())
			Expect(session.Responses["alice"].Answers[0]).To(Equal("shipped X"))
		})
	})

	Describe("publish confirmation gate", func() {
		BeforeEach(func() {
			send("alice", "Alice", "join")
			send("bob", "Bob", "join")
			send("alice", "Alice", "start")
			send("alice", "Alice", "end")
			sender.reset()
		})

		It("rejects publish from anyone but the facilitator", func() {
			send("bob", "Bob", "publish")
			Expect(lastText()).To(ContainSubstring("facilitator to confirm"))

			session := states.states[conversationID].ActiveSession
			Expect(session.AwaitingPublishConfirmation).To(BeTrue())
		})

		It("discards on no and clears the session", func() {
			send("alice", "Alice", "no")
			Expect(lastText()).To(ContainSubstring("summary discarded"))
			Expect(states.states[conversationID].ActiveSession).To(BeNil())
		})

		It("nudges on unrecognized confirmation text", func() {
			send("alice", "Alice", "maybe later")
			Expect(lastText()).To(ContainSubstring("`yes` to publish or `no` to skip"))
		})

		It("clears the session even when summary delivery fails", func() {
			sender.sendToFn = func(ctx context.Context, ref model.ConversationRef, msg botframework.Message) error {
				return errors.New("connector unavailable")
			}

			send("alice", "Alice", "publish")
			Expect(lastText()).To(ContainSubstring("couldn't publish the summary"))
			Expect(states.states[conversationID].ActiveSession).To(BeNil())
		})
	})

	Describe("free text outside a session", func() {
		It("ignores chatter without replying", func() {
			send("alice", "Alice", "good morning everyone")
			Expect(sender.sent).To(BeEmpty())
		})

		It("answers end with no active stand-up", func() {
			send("alice", "Alice", "end")
			Expect(lastText()).To(Equal("There is no active stand-up right now."))
		})
	})
})
