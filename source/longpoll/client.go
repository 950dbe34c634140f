// Package longpoll implements source.Source over an HTTP long-poll
// message provider with Telegram-style update framing.
package longpoll

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xraph/reconcile/source"
)

const (
	// DefaultTimeout bounds one poll round trip. The engine's poll
	// loop must never block past its own period, so this stays short.
	DefaultTimeout = 5 * time.Second

	// DefaultLimit is the maximum batch size requested per poll.
	DefaultLimit = 100
)

// Client polls an update endpoint of the form
// {base}/{channelToken}/updates?offset=N&limit=M and decodes the
// provider's update envelope into raw messages.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
	limit   int
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpc = hc }
}

// WithTimeout sets the per-poll round-trip bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLimit sets the maximum batch size requested per poll.
func WithLimit(n int) Option {
	return func(c *Client) { c.limit = n }
}

// WithLogger sets the logger used for transient-failure warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New returns a Client polling the given provider base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{},
		logger:  slog.Default(),
		limit:   DefaultLimit,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// update is the provider's wire framing for one inbound message.
type update struct {
	UpdateID int64 `json:"update_id"`
	Message  struct {
		MessageID int64 `json:"message_id"`
		Chat      struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text    string `json:"text"`
		ReplyTo *struct {
			MessageID int64 `json:"message_id"`
		} `json:"reply_to_message"`
	} `json:"message"`
}

type updateEnvelope struct {
	OK          bool     `json:"ok"`
	Description string   `json:"description"`
	Result      []update `json:"result"`
}

// Poll fetches updates after cur for the given channel token.
//
// Transient failures (network errors, non-2xx responses, malformed
// bodies, provider-level ok=false) yield an empty batch with the
// cursor unchanged and a nil error; the caller retries on its next
// cycle. A non-nil error is returned only for unusable configuration.
func (c *Client) Poll(ctx context.Context, channelToken string, cur source.Cursor) ([]source.RawMessage, source.Cursor, error) {
	if channelToken == "" {
		return nil, cur, fmt.Errorf("longpoll: empty channel token")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("offset", strconv.FormatInt(int64(cur)+1, 10))
	q.Set("limit", strconv.Itoa(c.limit))
	endpoint := fmt.Sprintf("%s/%s/updates?%s", c.baseURL, url.PathEscape(channelToken), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, cur, fmt.Errorf("longpoll: build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn("poll request failed", "error", err)
		return nil, cur, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		c.logger.Warn("poll returned non-success status", "status", resp.StatusCode)
		return nil, cur, nil
	}

	var env updateEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.logger.Warn("poll body decode failed", "error", err)
		return nil, cur, nil
	}
	if !env.OK {
		c.logger.Warn("provider rejected poll", "description", env.Description)
		return nil, cur, nil
	}

	msgs := make([]source.RawMessage, 0, len(env.Result))
	next := cur
	for _, u := range env.Result {
		if source.Cursor(u.UpdateID) > next {
			next = source.Cursor(u.UpdateID)
		}
		msg := source.RawMessage{
			Handle:     strconv.FormatInt(u.Message.MessageID, 10),
			SenderChat: strconv.FormatInt(u.Message.Chat.ID, 10),
			Text:       u.Message.Text,
			Cursor:     source.Cursor(u.UpdateID),
		}
		if u.Message.ReplyTo != nil {
			msg.RepliesTo = strconv.FormatInt(u.Message.ReplyTo.MessageID, 10)
		}
		msgs = append(msgs, msg)
	}
	return msgs, next, nil
}
