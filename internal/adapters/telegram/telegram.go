// Package telegram is the Bot API transport: sending one notification
// message per call, classifying the response into transient,
// permanent-blocked, and permanent-other outcomes, and carrying an
// explicit retry-after duration when the server provides one.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// httpClientTimeout bounds a single Bot API round trip.
const httpClientTimeout = 30 * time.Second

// Outcome classifies what happened to one send attempt.
type Outcome int

const (
	// OutcomeSent means the message was accepted.
	OutcomeSent Outcome = iota
	// OutcomeTransient means the caller should retry: a network error, a
	// 5xx, or a rate limit. For a rate limit, RetryAfter carries the wait
	// the server asked for when the response named one.
	OutcomeTransient
	// OutcomeBlocked means the chat is gone or the bot was removed from
	// it: the caller should deactivate the subscriber and stop.
	OutcomeBlocked
	// OutcomePermanentOther means the request itself is invalid: log
	// and move on, no retry, no deactivation.
	OutcomePermanentOther
)

// SendError carries the classification and, for a rate limit, the
// exact duration the server asked the caller to wait.
type SendError struct {
	Outcome    Outcome
	RetryAfter time.Duration
	Err        error
}

func (e *SendError) Error() string { return e.Err.Error() }
func (e *SendError) Unwrap() error { return e.Err }

// StopRetry reports whether the outcome must not be retried (a blocked
// chat or an invalid request), so a throttle.Throttler returns it at once.
func (e *SendError) StopRetry() bool {
	return e.Outcome == OutcomeBlocked || e.Outcome == OutcomePermanentOther
}

// blockedDescriptions are Bot API description substrings that mean the
// chat is permanently unreachable through no fault of the request
// itself.
var blockedDescriptions = []string{
	"bot was blocked by the user",
	"user is deactivated",
	"chat not found",
	"bot was kicked",
	"kicked from",
	"not enough rights",
}

// Client sends notification and menu messages, edits them in place, and
// polls for incoming commands and button taps through the Bot API.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

// Button is one inline-keyboard button: a label and the callback data
// Telegram hands back verbatim in a callback_query update when it's
// tapped.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of inline buttons, one row per slice entry.
type Keyboard [][]Button

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

func (kb Keyboard) encode() (string, error) {
	markup := inlineKeyboardMarkup{InlineKeyboard: make([][]inlineButton, len(kb))}
	for i, row := range kb {
		encodedRow := make([]inlineButton, len(row))
		for j, btn := range row {
			encodedRow[j] = inlineButton{Text: btn.Text, CallbackData: btn.Data}
		}
		markup.InlineKeyboard[i] = encodedRow
	}
	body, err := json.Marshal(markup)
	if err != nil {
		return "", fmt.Errorf("telegram: encode keyboard: %w", err)
	}
	return string(body), nil
}

// NewClient builds a Client for token, rate-limited to rps requests per
// second with a burst of the same size.
func NewClient(token string, rps int) *Client {
	if rps <= 0 {
		rps = 30
	}
	return &Client{
		base:    "https://api.telegram.org/bot" + token,
		http:    &http.Client{Timeout: httpClientTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Send delivers text to chatID, rate-limited by the client's own
// limiter. The returned error, when non-nil, is always a *SendError.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &SendError{Outcome: OutcomeTransient, Err: err}
	}
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	params.Set("disable_web_page_preview", "true")
	_, err := c.request(ctx, "/sendMessage", params)
	return err
}

// SendWithKeyboard delivers text to chatID with an inline keyboard
// attached, rate-limited like Send, and returns the sent message's id
// so a later tap can be routed back to it for editing.
func (c *Client) SendWithKeyboard(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, &SendError{Outcome: OutcomeTransient, Err: err}
	}
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	params.Set("disable_web_page_preview", "true")
	if len(kb) > 0 {
		markup, err := kb.encode()
		if err != nil {
			return 0, &SendError{Outcome: OutcomePermanentOther, Err: err}
		}
		params.Set("reply_markup", markup)
	}
	body, err := c.request(ctx, "/sendMessage", params)
	if err != nil {
		return 0, err
	}
	return parseMessageID(body), nil
}

// EditMessageText replaces the text (and, optionally, the keyboard) of
// a message the bot previously sent. A nil or empty kb clears any
// existing keyboard. Not rate-limited against the send budget: edits
// are triggered by user taps, not by the monitor's own fan-out.
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("message_id", strconv.Itoa(messageID))
	params.Set("text", text)
	if len(kb) > 0 {
		markup, err := kb.encode()
		if err != nil {
			return &SendError{Outcome: OutcomePermanentOther, Err: err}
		}
		params.Set("reply_markup", markup)
	}
	_, err := c.request(ctx, "/editMessageText", params)
	return err
}

// AnswerCallbackQuery clears the loading spinner Telegram shows on a
// tapped inline button. text, when non-empty, is shown as a transient
// toast rather than a chat message.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	params := url.Values{}
	params.Set("callback_query_id", callbackQueryID)
	if text != "" {
		params.Set("text", text)
	}
	_, err := c.request(ctx, "/answerCallbackQuery", params)
	return err
}

// request performs one Bot API call and returns the raw response body
// once it has been classified as a success; any failure is returned as
// a *SendError so callers share the same retry/outcome handling Send
// uses.
func (c *Client) request(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &SendError{Outcome: OutcomePermanentOther, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &SendError{Outcome: OutcomeTransient, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SendError{Outcome: OutcomeTransient, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(resp, body)
	}
	if err := classifyJSONResponse(body); err != nil {
		return nil, err
	}
	return body, nil
}

// parseMessageID extracts result.message_id from a sendMessage response
// body; 0 if the shape doesn't match (never expected once classifyJSONResponse
// has already confirmed ok:true).
func parseMessageID(body []byte) int {
	var payload struct {
		Result struct {
			MessageID int `json:"message_id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0
	}
	return payload.Result.MessageID
}

func classifyHTTPError(resp *http.Response, body []byte) error {
	status := resp.StatusCode
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}

	if status == http.StatusTooManyRequests {
		wait := retryAfterFromHeader(resp.Header.Get("Retry-After"))
		if wait == 0 {
			wait = retryAfterFromBody(body)
		}
		return &SendError{Outcome: OutcomeTransient, RetryAfter: wait, Err: fmt.Errorf("telegram: rate limited (%d): %s", status, msg)}
	}
	if status >= 400 && status < 500 {
		if isBlockedDescription(msg) {
			return &SendError{Outcome: OutcomeBlocked, Err: fmt.Errorf("telegram: chat unreachable (%d): %s", status, msg)}
		}
		return &SendError{Outcome: OutcomePermanentOther, Err: fmt.Errorf("telegram: client error (%d): %s", status, msg)}
	}
	return &SendError{Outcome: OutcomeTransient, Err: fmt.Errorf("telegram: server error (%d): %s", status, msg)}
}

func classifyJSONResponse(body []byte) error {
	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
		ErrorCode   int    `json:"error_code"`
		Parameters  struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return &SendError{Outcome: OutcomeTransient, Err: fmt.Errorf("telegram: decode response: %w", err)}
	}
	if apiResp.OK {
		return nil
	}

	msg := strings.TrimSpace(apiResp.Description)
	if msg == "" {
		msg = "(empty telegram description)"
	}

	if apiResp.ErrorCode == http.StatusTooManyRequests {
		wait := time.Duration(0)
		if apiResp.Parameters.RetryAfter > 0 {
			wait = time.Duration(apiResp.Parameters.RetryAfter) * time.Second
		}
		return &SendError{Outcome: OutcomeTransient, RetryAfter: wait, Err: fmt.Errorf("telegram: rate limited (%d): %s", apiResp.ErrorCode, msg)}
	}
	if isBlockedDescription(msg) {
		return &SendError{Outcome: OutcomeBlocked, Err: fmt.Errorf("telegram: chat unreachable (%d): %s", apiResp.ErrorCode, msg)}
	}
	if apiResp.ErrorCode >= 400 && apiResp.ErrorCode < 500 {
		return &SendError{Outcome: OutcomePermanentOther, Err: fmt.Errorf("telegram: error %d: %s", apiResp.ErrorCode, msg)}
	}
	return &SendError{Outcome: OutcomeTransient, Err: fmt.Errorf("telegram: error %d: %s", apiResp.ErrorCode, msg)}
}

func isBlockedDescription(msg string) bool {
	lower := strings.ToLower(msg)
	for _, substr := range blockedDescriptions {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}

func retryAfterFromHeader(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := http.ParseTime(value); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func retryAfterFromBody(body []byte) time.Duration {
	var payload struct {
		Parameters struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0
	}
	if payload.Parameters.RetryAfter <= 0 {
		return 0
	}
	return time.Duration(payload.Parameters.RetryAfter) * time.Second
}

// pollTimeoutSeconds is the Bot API long-poll window for getUpdates.
const pollTimeoutSeconds = 30

// IncomingMessage is the subset of a Telegram update the command
// dispatcher cares about: who sent it, and the raw text.
type IncomingMessage struct {
	ChatID int64
	Text   string
}

// IncomingCallback is one tapped inline-keyboard button: the id needed
// to answer it, the chat and message it was attached to (so the
// message can be edited in place), and the callback data it carried.
type IncomingCallback struct {
	ID        string
	ChatID    int64
	MessageID int
	Data      string
}

// GetUpdates long-polls for new messages and button taps starting
// after offset, and returns the next offset to use on the following
// call (the highest update_id seen, plus one). An empty result with no
// error means the long-poll window elapsed with nothing new.
func (c *Client) GetUpdates(ctx context.Context, offset int) ([]IncomingMessage, []IncomingCallback, int, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("timeout", strconv.Itoa(pollTimeoutSeconds))
	params.Set("allowed_updates", `["message","callback_query"]`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, nil, offset, fmt.Errorf("telegram: build getUpdates request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, offset, fmt.Errorf("telegram: getUpdates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, offset, fmt.Errorf("telegram: read getUpdates response: %w", err)
	}

	var payload struct {
		OK     bool `json:"ok"`
		Result []struct {
			UpdateID int `json:"update_id"`
			Message  *struct {
				Chat struct {
					ID int64 `json:"id"`
				} `json:"chat"`
				Text string `json:"text"`
			} `json:"message"`
			CallbackQuery *struct {
				ID      string `json:"id"`
				Data    string `json:"data"`
				Message struct {
					MessageID int `json:"message_id"`
					Chat      struct {
						ID int64 `json:"id"`
					} `json:"chat"`
				} `json:"message"`
			} `json:"callback_query"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, offset, fmt.Errorf("telegram: decode getUpdates response: %w", err)
	}
	if !payload.OK {
		return nil, nil, offset, fmt.Errorf("telegram: getUpdates returned not-ok: %s", strings.TrimSpace(string(body)))
	}

	var messages []IncomingMessage
	var callbacks []IncomingCallback
	next := offset
	for _, upd := range payload.Result {
		if upd.UpdateID+1 > next {
			next = upd.UpdateID + 1
		}
		switch {
		case upd.CallbackQuery != nil:
			cq := upd.CallbackQuery
			callbacks = append(callbacks, IncomingCallback{
				ID:        cq.ID,
				ChatID:    cq.Message.Chat.ID,
				MessageID: cq.Message.MessageID,
				Data:      cq.Data,
			})
		case upd.Message != nil && upd.Message.Text != "":
			messages = append(messages, IncomingMessage{ChatID: upd.Message.Chat.ID, Text: upd.Message.Text})
		}
	}
	return messages, callbacks, next, nil
}

// RetryAfterExtractor builds a throttle.WaitExtractor-compatible
// function extracting the server-specified retry-after from a
// *SendError, honored exactly with no added jitter.
func RetryAfterExtractor() func(error) (time.Duration, bool) {
	return func(err error) (time.Duration, bool) {
		if err == nil {
			return 0, false
		}
		var sendErr *SendError
		if !errors.As(err, &sendErr) {
			return 0, false
		}
		if sendErr.RetryAfter <= 0 {
			return 0, false
		}
		return sendErr.RetryAfter, true
	}
}
