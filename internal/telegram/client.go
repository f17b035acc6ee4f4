package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"linkdrop/internal/logging"
)

const defaultBaseURL = "https://api.telegram.org"

// ErrCircuitOpen is returned when the breaker is rejecting calls locally.
var ErrCircuitOpen = errors.New("telegram api circuit open")

// Client is a minimal Bot API client: long-poll updates in, messages and
// callback acknowledgements out. Outbound methods are rate limited (the Bot
// API allows roughly 30 messages per second overall) and guarded by a
// circuit breaker with retry/backoff that honors 429 retry_after.
type Client struct {
	log     *slog.Logger
	http    *http.Client
	baseURL string
	token   string
	retry   RetryConfig
	limiter *rate.Limiter
	breaker *Breaker

	pollTimeout time.Duration
}

type ClientOptions struct {
	BaseURL     string
	Retry       *RetryConfig
	SendPerSec  float64
	PollTimeout time.Duration
}

func NewClient(log *slog.Logger, token string) *Client {
	return NewClientWithOptions(log, token, ClientOptions{})
}

func NewClientWithOptions(log *slog.Logger, token string, opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.SendPerSec <= 0 {
		opts.SendPerSec = 25
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	retry := DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	return &Client{
		log:         log,
		http:        newHTTPClient(opts.PollTimeout),
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		token:       token,
		retry:       retry,
		limiter:     rate.NewLimiter(rate.Limit(opts.SendPerSec), 5),
		breaker:     NewBreaker(5, 30*time.Second),
		pollTimeout: opts.PollTimeout,
	}
}

// GetUpdates long-polls for the next batch of updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(c.pollTimeout.Seconds()),
		AllowedUpdates: []string{"message", "callback_query"},
	}

	var updates []Update
	if err := c.invoke(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends HTML-formatted text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.sendMessage(ctx, sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"})
}

// SendMessageWithKeyboard sends text with an inline keyboard attached.
func (c *Client) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, kb *InlineKeyboardMarkup) error {
	return c.sendMessage(ctx, sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML", ReplyMarkup: kb})
}

func (c *Client) sendMessage(ctx context.Context, req sendMessageRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.invoke(ctx, "sendMessage", req, nil)
}

// AnswerCallbackQuery acknowledges a button press with an ephemeral notice.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.invoke(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: callbackID, Text: text}, nil)
}

// invoke posts one Bot API method, retrying transient failures. The bot
// token is part of the URL, so transport errors are re-worded with the token
// masked before they can reach a log line.
func (c *Client) invoke(ctx context.Context, method string, payload, out interface{}) error {
	if !c.breaker.Allow() {
		return ErrCircuitOpen
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	var lastErr error
	retryAfter := time.Duration(0)

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := Backoff(c.retry, attempt-1, retryAfter)
			retryAfter = 0
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				c.breaker.RecordFailure()
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			c.breaker.RecordFailure()
			return fmt.Errorf("%s: build request: %w", method, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s: %s", method, c.maskToken(err.Error()))
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%s: read response: %w", method, err)
			continue
		}

		var env apiResponse
		if err := json.Unmarshal(data, &env); err != nil {
			lastErr = fmt.Errorf("%s: decode response (status %d): %w", method, resp.StatusCode, err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || env.ErrorCode == http.StatusTooManyRequests {
			if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
				retryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
			}
			lastErr = fmt.Errorf("%s: rate limited by telegram", method)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%s: telegram returned status %d", method, resp.StatusCode)
			continue
		}

		if !env.OK {
			// a definite API rejection, not an outage: no retry, breaker stays closed
			c.breaker.RecordSuccess()
			return fmt.Errorf("%s: telegram error %d: %s", method, env.ErrorCode, env.Description)
		}

		if out != nil {
			if err := json.Unmarshal(env.Result, out); err != nil {
				c.breaker.RecordFailure()
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
		}

		c.breaker.RecordSuccess()
		return nil
	}

	c.breaker.RecordFailure()
	return lastErr
}

func (c *Client) maskToken(s string) string {
	if c.token == "" {
		return s
	}
	return strings.ReplaceAll(s, c.token, logging.MaskToken(c.token))
}
