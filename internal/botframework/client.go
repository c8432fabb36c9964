package botframework

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"cadence.app/server/core/config"
	"cadence.app/server/internal/model"
)

// Sender delivers outbound messages to the channel connector.
type Sender interface {
	// Reply posts a message into the conversation an activity arrived from,
	// threaded to that activity.
	Reply(ctx context.Context, incoming *Activity, msg Message) error
	// SendTo posts a message proactively using a stored conversation
	// reference.
	SendTo(ctx context.Context, ref model.ConversationRef, msg Message) error
}

// ConnectorClient talks to the Bot Framework connector REST API, obtaining
// service tokens through the client-credentials flow. Without credentials it
// posts unauthenticated, which is what the local emulator expects.
type ConnectorClient struct {
	httpClient *http.Client
	botID      string
	logger     *slog.Logger
}

func NewConnectorClient(cfg config.BotConfig, logger *slog.Logger) *ConnectorClient {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	if cfg.AppID != "" && cfg.AppSecret != "" {
		creds := clientcredentials.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       []string{cfg.TokenScope},
		}
		httpClient = creds.Client(context.Background())
		httpClient.Timeout = 30 * time.Second
	}

	return &ConnectorClient{
		httpClient: httpClient,
		botID:      cfg.AppID,
		logger:     logger,
	}
}

func (c *ConnectorClient) Reply(ctx context.Context, incoming *Activity, msg Message) error {
	outbound := Activity{
		Type:         ActivityTypeMessage,
		From:         ChannelAccount{ID: incoming.Recipient.ID, Name: incoming.Recipient.Name},
		Recipient:    ChannelAccount{ID: incoming.From.ID, Name: incoming.From.Name},
		Conversation: ConversationAccount{ID: incoming.Conversation.ID},
		ReplyToID:    incoming.ID,
		Text:         msg.Text,
		TextFormat:   "markdown",
		Entities:     msg.Entities,
	}
	endpoint := activityEndpoint(incoming.ServiceURL, incoming.Conversation.ID, incoming.ID)
	return c.post(ctx, endpoint, outbound)
}

func (c *ConnectorClient) SendTo(ctx context.Context, ref model.ConversationRef, msg Message) error {
	botID := ref.BotID
	if botID == "" {
		botID = c.botID
	}
	outbound := Activity{
		Type:         ActivityTypeMessage,
		From:         ChannelAccount{ID: botID},
		Conversation: ConversationAccount{ID: ref.ConversationID},
		Text:         msg.Text,
		TextFormat:   "markdown",
		Entities:     msg.Entities,
	}
	endpoint := activityEndpoint(ref.ServiceURL, ref.ConversationID, "")
	return c.post(ctx, endpoint, outbound)
}

func (c *ConnectorClient) post(ctx context.Context, endpoint string, activity Activity) error {
	payload, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("encoding activity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building connector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting activity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("connector returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.DebugContext(ctx, "activity delivered", "endpoint", endpoint, "status", resp.StatusCode)
	return nil
}

func activityEndpoint(serviceURL, conversationID, replyToID string) string {
	base := strings.TrimRight(serviceURL, "/")
	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities", base, url.PathEscape(conversationID))
	if replyToID != "" {
		endpoint += "/" + url.PathEscape(replyToID)
	}
	return endpoint
}
