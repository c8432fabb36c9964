package botframework

import (
	"regexp"
	"strings"
	"time"

	"cadence.app/server/internal/model"
)

// ChannelAccount identifies a user or bot on the channel.
type ChannelAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
	Role        string `json:"role,omitempty"`
}

// ConversationAccount identifies the conversation an activity belongs to.
type ConversationAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Mentioned is the account carried inside a mention entity.
type Mentioned struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
	Role        string `json:"role,omitempty"`
}

// Entity is a metadata object attached to an activity. Only mention entities
// are interpreted.
type Entity struct {
	Type      string     `json:"type"`
	Text      string     `json:"text,omitempty"`
	Mentioned *Mentioned `json:"mentioned,omitempty"`
}

// Activity is the subset of the Bot Framework activity schema the service
// consumes and emits.
type Activity struct {
	Type         string              `json:"type"`
	ID           string              `json:"id,omitempty"`
	Timestamp    time.Time           `json:"timestamp,omitempty"`
	ServiceURL   string              `json:"serviceUrl,omitempty"`
	ChannelID    string              `json:"channelId,omitempty"`
	From         ChannelAccount      `json:"from,omitempty"`
	Recipient    ChannelAccount      `json:"recipient,omitempty"`
	Conversation ConversationAccount `json:"conversation,omitempty"`
	ReplyToID    string              `json:"replyToId,omitempty"`
	Text         string              `json:"text,omitempty"`
	TextFormat   string              `json:"textFormat,omitempty"`
	Entities     []Entity            `json:"entities,omitempty"`
}

const (
	ActivityTypeMessage = "message"

	entityTypeMention = "mention"
	roleChannel       = "channel"
)

var mentionMarkup = regexp.MustCompile(`(?i)<at>[^<]+</at>`)

// SanitizedText returns the activity text with mention markup stripped and
// surrounding whitespace trimmed. Command routing operates on this form.
func (a *Activity) SanitizedText() string {
	return strings.TrimSpace(mentionMarkup.ReplaceAllString(a.Text, ""))
}

// SenderKey returns the stable identity key for the sender: the directory
// object id when the channel provides one, otherwise the channel account id.
func (a *Activity) SenderKey() string {
	if a.From.AADObjectID != "" {
		return a.From.AADObjectID
	}
	return a.From.ID
}

// SenderName returns the sender's display name, falling back to the account
// id when the channel omits it.
func (a *Activity) SenderName() string {
	if a.From.Name != "" {
		return a.From.Name
	}
	return a.From.ID
}

// Ref captures a reusable reference for proactive delivery back into this
// activity's conversation.
func (a *Activity) Ref() model.ConversationRef {
	return model.ConversationRef{
		ConversationID: a.Conversation.ID,
		ServiceURL:     a.ServiceURL,
		BotID:          a.Recipient.ID,
		ChannelName:    a.Conversation.Name,
	}
}

// UserMention returns the first mentioned user account, skipping channel
// mentions and mentions of the bot itself.
func (a *Activity) UserMention() *Mentioned {
	for _, entity := range a.Entities {
		if entity.Type != entityTypeMention || entity.Mentioned == nil {
			continue
		}
		if entity.Mentioned.Role == roleChannel {
			continue
		}
		if entity.Mentioned.ID == a.Recipient.ID {
			continue
		}
		return entity.Mentioned
	}
	return nil
}

// ChannelMention returns the first mentioned channel, if any.
func (a *Activity) ChannelMention() *Mentioned {
	for _, entity := range a.Entities {
		if entity.Type != entityTypeMention || entity.Mentioned == nil {
			continue
		}
		if entity.Mentioned.Role == roleChannel && entity.Mentioned.ID != "" {
			return entity.Mentioned
		}
	}
	return nil
}

// Message is an outbound text payload plus any mention entities it carries.
type Message struct {
	Text     string
	Entities []Entity
}

// TextMessage builds a plain outbound message.
func TextMessage(text string) Message {
	return Message{Text: text}
}

// MentionMessage builds a message whose text opens with a mention of the
// member, wiring the matching mention entity so the channel renders and
// notifies it.
func MentionMessage(member *model.RosterMember, rest string) Message {
	markup := "<at>" + member.Name + "</at>"
	mentionID := member.DirectoryID
	if mentionID == "" {
		mentionID = member.ID
	}
	return Message{
		Text: markup + " " + rest,
		Entities: []Entity{{
			Type: entityTypeMention,
			Text: markup,
			Mentioned: &Mentioned{
				ID:   mentionID,
				Name: member.Name,
			},
		}},
	}
}
