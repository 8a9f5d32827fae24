package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// newTestClient points a Client at srv instead of the real Bot API.
func newTestClient(srv *httptest.Server) *Client {
	return &Client{
		base:    srv.URL,
		http:    srv.Client(),
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
}

func TestClassifyJSONResponseOK(t *testing.T) {
	t.Parallel()

	err := classifyJSONResponse([]byte(`{"ok":true,"result":{}}`))
	if err != nil {
		t.Fatalf("classifyJSONResponse(ok) error = %v, want nil", err)
	}
}

func TestClassifyJSONResponseBlocked(t *testing.T) {
	t.Parallel()

	body := []byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
	err := classifyJSONResponse(body)

	var sendErr *SendError
	if !errors.As(err, &sendErr) || sendErr.Outcome != OutcomeBlocked {
		t.Fatalf("classifyJSONResponse(blocked) = %#v, want OutcomeBlocked", err)
	}
}

func TestClassifyJSONResponseRateLimited(t *testing.T) {
	t.Parallel()

	body := []byte(`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":5}}`)
	err := classifyJSONResponse(body)

	var sendErr *SendError
	if !errors.As(err, &sendErr) || sendErr.Outcome != OutcomeTransient || sendErr.RetryAfter != 5*time.Second {
		t.Fatalf("classifyJSONResponse(429) = %#v, want transient with 5s retry-after", err)
	}
}

func TestClassifyJSONResponsePermanentOther(t *testing.T) {
	t.Parallel()

	body := []byte(`{"ok":false,"error_code":400,"description":"Bad Request: message text is empty"}`)
	err := classifyJSONResponse(body)

	var sendErr *SendError
	if !errors.As(err, &sendErr) || sendErr.Outcome != OutcomePermanentOther {
		t.Fatalf("classifyJSONResponse(400) = %#v, want OutcomePermanentOther", err)
	}
}

func TestClassifyHTTPErrorServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	resp := &http.Response{StatusCode: http.StatusBadGateway, Header: http.Header{}}
	err := classifyHTTPError(resp, []byte("bad gateway"))

	var sendErr *SendError
	if !errors.As(err, &sendErr) || sendErr.Outcome != OutcomeTransient {
		t.Fatalf("classifyHTTPError(502) = %#v, want OutcomeTransient", err)
	}
}

func TestRetryAfterFromHeaderSeconds(t *testing.T) {
	t.Parallel()

	got := retryAfterFromHeader("7")
	if got != 7*time.Second {
		t.Fatalf("retryAfterFromHeader(7) = %v, want 7s", got)
	}
}

func TestRetryAfterFromHeaderEmpty(t *testing.T) {
	t.Parallel()

	if got := retryAfterFromHeader(""); got != 0 {
		t.Fatalf("retryAfterFromHeader(\"\") = %v, want 0", got)
	}
}

func TestRetryAfterExtractorHonorsServerWaitWithNoJitter(t *testing.T) {
	t.Parallel()

	extractor := RetryAfterExtractor()
	wait, ok := extractor(&SendError{Outcome: OutcomeTransient, RetryAfter: 3 * time.Second})
	if !ok || wait != 3*time.Second {
		t.Fatalf("RetryAfterExtractor() = (%v, %v), want (3s, true)", wait, ok)
	}
}

func TestRetryAfterExtractorIgnoresOtherErrors(t *testing.T) {
	t.Parallel()

	extractor := RetryAfterExtractor()
	if _, ok := extractor(errors.New("boom")); ok {
		t.Fatalf("RetryAfterExtractor() matched a non-SendError, want false")
	}
}

func TestIsBlockedDescriptionCaseInsensitive(t *testing.T) {
	t.Parallel()

	if !isBlockedDescription("Forbidden: BOT WAS KICKED from the group chat") {
		t.Fatalf("isBlockedDescription() = false, want true for kicked message")
	}
	if isBlockedDescription("Bad Request: message is too long") {
		t.Fatalf("isBlockedDescription() = true, want false for unrelated error")
	}
}

func TestKeyboardEncode(t *testing.T) {
	t.Parallel()

	kb := Keyboard{
		{{Text: "en-us", Data: "locale:en-us"}},
		{{Text: "es-es", Data: "locale:es-es"}},
	}
	encoded, err := kb.encode()
	if err != nil {
		t.Fatalf("encode() error = %v", err)
	}

	var decoded inlineKeyboardMarkup
	if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
		t.Fatalf("encode() produced invalid JSON: %v", err)
	}
	if len(decoded.InlineKeyboard) != 2 || decoded.InlineKeyboard[0][0].CallbackData != "locale:en-us" {
		t.Fatalf("encode() = %s, want two rows with locale callback data", encoded)
	}
}

func TestSendWithKeyboardAttachesReplyMarkupAndReturnsMessageID(t *testing.T) {
	t.Parallel()

	var gotMarkup string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMarkup = r.URL.Query().Get("reply_markup")
		w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	kb := Keyboard{{{Text: "en-us", Data: "locale:en-us"}}}
	id, err := c.SendWithKeyboard(context.Background(), 1, "pick one", kb)
	if err != nil {
		t.Fatalf("SendWithKeyboard() error = %v", err)
	}
	if id != 42 {
		t.Fatalf("SendWithKeyboard() message id = %d, want 42", id)
	}
	if !strings.Contains(gotMarkup, "locale:en-us") {
		t.Fatalf("SendWithKeyboard() reply_markup = %q, want it to carry the callback data", gotMarkup)
	}
}

func TestEditMessageTextPostsChatAndMessageID(t *testing.T) {
	t.Parallel()

	var gotChatID, gotMessageID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotChatID = r.URL.Query().Get("chat_id")
		gotMessageID = r.URL.Query().Get("message_id")
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if err := c.EditMessageText(context.Background(), 7, 42, "subscribed", nil); err != nil {
		t.Fatalf("EditMessageText() error = %v", err)
	}
	if gotChatID != "7" || gotMessageID != "42" {
		t.Fatalf("EditMessageText() chat_id=%q message_id=%q, want 7 and 42", gotChatID, gotMessageID)
	}
}

func TestAnswerCallbackQuerySendsID(t *testing.T) {
	t.Parallel()

	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.URL.Query().Get("callback_query_id")
		w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if err := c.AnswerCallbackQuery(context.Background(), "cbq-1", ""); err != nil {
		t.Fatalf("AnswerCallbackQuery() error = %v", err)
	}
	if gotID != "cbq-1" {
		t.Fatalf("AnswerCallbackQuery() callback_query_id = %q, want cbq-1", gotID)
	}
}

func TestGetUpdatesSeparatesMessagesAndCallbacksAndAdvancesOffset(t *testing.T) {
	t.Parallel()

	const body = `{"ok":true,"result":[
		{"update_id":10,"message":{"chat":{"id":1},"text":"/start"}},
		{"update_id":11,"callback_query":{"id":"cbq-1","data":"locale:en-us","message":{"message_id":99,"chat":{"id":1}}}}
	]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	messages, callbacks, next, err := c.GetUpdates(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetUpdates() error = %v", err)
	}
	if len(messages) != 1 || messages[0].Text != "/start" {
		t.Fatalf("GetUpdates() messages = %#v, want one /start message", messages)
	}
	if len(callbacks) != 1 || callbacks[0].Data != "locale:en-us" || callbacks[0].MessageID != 99 {
		t.Fatalf("GetUpdates() callbacks = %#v, want one locale:en-us callback on message 99", callbacks)
	}
	if next != 12 {
		t.Fatalf("GetUpdates() next offset = %d, want 12", next)
	}
}
