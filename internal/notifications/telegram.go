// Package notifications delivers run summaries through the Telegram Bot API.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/kilebles/ozon-parser/internal/retry"
)

const DefaultBaseURL = "https://api.telegram.org"

// Client sends messages to a single chat. With an empty token it is a
// disabled no-op; delivery failures are logged by callers, never fatal.
type Client struct {
	http     *resty.Client
	baseURL  string
	token    string
	chatID   string
	retryCfg retry.Config
}

func NewClient(baseURL, token, chatID string, retryCfg retry.Config) *Client {
	return &Client{
		http:     resty.New(),
		baseURL:  baseURL,
		token:    token,
		chatID:   chatID,
		retryCfg: retryCfg,
	}
}

func (c *Client) Enabled() bool {
	return c.token != ""
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// sendMessageResponse carries "result" as the sent message object; it is
// left opaque since only the ok flag matters here. getUpdates responds
// with a "result" array instead, hence the separate type below.
type sendMessageResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type getUpdatesResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      []struct {
		Message struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"result"`
}

// SendMessage delivers one HTML-formatted message, retrying transient
// failures with backoff.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if !c.Enabled() {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}

	chatID, err := c.ensureChatID(ctx)
	if err != nil {
		return err
	}

	_, err = retry.WithRetry(ctx, c.retryCfg, func(ctx context.Context) (struct{}, error) {
		var result sendMessageResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"}).
			SetResult(&result).
			SetError(&result).
			Post(c.methodURL("sendMessage"))
		if err != nil {
			return struct{}{}, fmt.Errorf("sendMessage request failed: %w", err)
		}
		if !result.OK {
			return struct{}{}, fmt.Errorf("telegram API error (http %d): %s", resp.StatusCode(), result.Description)
		}
		return struct{}{}, nil
	})
	return err
}

// ensureChatID returns the configured chat id, or autodetects it from the
// most recent message sent to the bot.
func (c *Client) ensureChatID(ctx context.Context) (string, error) {
	if c.chatID != "" {
		return c.chatID, nil
	}

	var result getUpdatesResponse
	_, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(c.methodURL("getUpdates"))
	if err != nil {
		return "", fmt.Errorf("getUpdates request failed: %w", err)
	}
	if !result.OK {
		return "", fmt.Errorf("telegram API error: %s", result.Description)
	}
	for i := len(result.Result) - 1; i >= 0; i-- {
		if id := result.Result[i].Message.Chat.ID; id != 0 {
			c.chatID = fmt.Sprintf("%d", id)
			log.Info().Str("chat_id", c.chatID).Msg("Auto-detected Telegram chat")
			return c.chatID, nil
		}
	}
	return "", fmt.Errorf("no chat found: send any message to the bot first")
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}
