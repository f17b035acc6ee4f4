package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkdrop/internal/ledger"
	"linkdrop/internal/telegram"
)

type sentMessage struct {
	chatID int64
	text   string
	kb     *telegram.InlineKeyboardMarkup
}

type fakeSender struct {
	messages []sentMessage
	acks     []string
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	f.messages = append(f.messages, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeSender) SendMessageWithKeyboard(_ context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) error {
	f.messages = append(f.messages, sentMessage{chatID: chatID, text: text, kb: kb})
	return nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, _, text string) error {
	f.acks = append(f.acks, text)
	return nil
}

type fakeAssistant struct {
	reply       string
	err         error
	lastText    string
	lastBalance int64
}

func (f *fakeAssistant) Reply(_ context.Context, text string, balance int64) (string, error) {
	f.lastText = text
	f.lastBalance = balance
	return f.reply, f.err
}

func newTestProcessor(adminID int64) (*Processor, *ledger.Mem, *fakeSender, *fakeAssistant) {
	store := ledger.NewMem()
	sender := &fakeSender{}
	ai := &fakeAssistant{reply: "model says hi"}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(log, store, nil, sender, ai, adminID)
	return p, store, sender, ai
}

func mkMsg(userID, chatID int64, text string) *telegram.Message {
	return &telegram.Message{
		From: &telegram.User{ID: userID, FirstName: fmt.Sprintf("U%d", userID)},
		Chat: telegram.Chat{ID: chatID},
		Text: text,
	}
}

func TestStart_CreatesUserWithZeroBalance(t *testing.T) {
	p, store, sender, _ := newTestProcessor(0)

	require.NoError(t, p.handleMessage(context.Background(), mkMsg(1, 1, "/start")))

	u, ok := store.GetUser(1)
	require.True(t, ok)
	assert.Equal(t, int64(0), u.Points)
	assert.False(t, u.Warned)

	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0].text, "0 points")
}

func TestDroplink_InsufficientBalance(t *testing.T) {
	p, store, sender, _ := newTestProcessor(0)
	ctx := context.Background()

	require.NoError(t, p.handleMessage(ctx, mkMsg(1, 1, "/droplink http://x Title")))

	// rejection cites cost and available balance, nothing changes
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0].text, "1000")
	assert.Contains(t, sender.messages[0].text, ">0<")

	u, _ := store.GetUser(1)
	assert.Equal(t, int64(0), u.Points)

	n, err := store.CountLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestDroplink_Success(t *testing.T) {
	p, store, sender, _ := newTestProcessor(0)
	ctx := context.Background()

	_, err := store.GetOrCreateUser(ctx, 1, "U1")
	require.NoError(t, err)
	require.NoError(t, store.AdjustPoints(ctx, 1, 1000))

	require.NoError(t, p.handleMessage(ctx, mkMsg(1, 1, "/droplink http://x My Title")))

	u, _ := store.GetUser(1)
	assert.Equal(t, int64(0), u.Points)

	links, err := store.RecentLinks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "http://x", links[0].URL)
	assert.Equal(t, "My Title", links[0].Title)
	assert.Equal(t, int64(1), links[0].OwnerID)

	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0].text, "My Title")
	assert.Contains(t, sender.messages[0].text, "http://x")
}

func TestDroplink_Usage(t *testing.T) {
	p, _, sender, _ := newTestProcessor(0)

	require.NoError(t, p.handleMessage(context.Background(), mkMsg(1, 1, "/droplink http://x")))

	require.Len(t, sender.messages, 1)
	assert.Equal(t, msgDroplinkUsage, sender.messages[0].text)
}

func TestCallback_LikeCreditsAndBroadcasts(t *testing.T) {
	p, store, sender, _ := newTestProcessor(0)
	ctx := context.Background()

	_, err := store.GetOrCreateUser(ctx, 1, "owner")
	require.NoError(t, err)
	link, err := store.RecordLink(ctx, 1, "http://x", "t")
	require.NoError(t, err)

	cb := &telegram.CallbackQuery{
		ID:      "cb1",
		From:    &telegram.User{ID: 2, FirstName: "U2"},
		Message: &telegram.Message{Chat: telegram.Chat{ID: 99}},
		Data:    fmt.Sprintf("like_%d", link.ID),
	}
	require.NoError(t, p.handleCallback(ctx, cb))

	u, _ := store.GetUser(2)
	assert.Equal(t, int64(200), u.Points)

	require.Len(t, sender.acks, 1)
	assert.Equal(t, "+200 points", sender.acks[0])

	require.Len(t, sender.messages, 1)
	assert.Equal(t, int64(99), sender.messages[0].chatID)
	assert.Contains(t, sender.messages[0].text, "200 points")
}

func TestCallback_RewardTable(t *testing.T) {
	tests := []struct {
		action string
		reward int64
	}{
		{"like", 200},
		{"comment", 350},
		{"repost", 500},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			p, store, _, _ := newTestProcessor(0)
			cb := &telegram.CallbackQuery{
				ID:   "cb",
				From: &telegram.User{ID: 5},
				Data: tt.action + "_1",
			}
			require.NoError(t, p.handleCallback(context.Background(), cb))
			u, _ := store.GetUser(5)
			assert.Equal(t, tt.reward, u.Points)
		})
	}
}

func TestCallback_UnknownActionIsNoOp(t *testing.T) {
	p, store, sender, _ := newTestProcessor(0)

	cb := &telegram.CallbackQuery{
		ID:      "cb2",
		From:    &telegram.User{ID: 3},
		Message: &telegram.Message{Chat: telegram.Chat{ID: 99}},
		Data:    "superlike_1",
	}
	require.NoError(t, p.handleCallback(context.Background(), cb))

	u, _ := store.GetUser(3)
	assert.Equal(t, int64(0), u.Points)

	// press is still acknowledged, but nothing is broadcast
	require.Len(t, sender.acks, 1)
	assert.Equal(t, "+0 points", sender.acks[0])
	assert.Empty(t, sender.messages)
}

func TestCallback_TouchesActivity(t *testing.T) {
	p, store, _, _ := newTestProcessor(0)
	ctx := context.Background()

	_, err := store.GetOrCreateUser(ctx, 4, "")
	require.NoError(t, err)
	require.NoError(t, store.MarkWarned(ctx, 4))

	cb := &telegram.CallbackQuery{ID: "cb3", From: &telegram.User{ID: 4}, Data: "like_1"}
	require.NoError(t, p.handleCallback(ctx, cb))

	u, _ := store.GetUser(4)
	assert.False(t, u.Warned)
}

func TestBrowse_Empty(t *testing.T) {
	p, _, sender, _ := newTestProcessor(0)

	require.NoError(t, p.handleMessage(context.Background(), mkMsg(1, 1, "/browse")))

	require.Len(t, sender.messages, 1)
	assert.Equal(t, msgNoLinks, sender.messages[0].text)
}

func TestBrowse_ListsRecentWithButtons(t *testing.T) {
	p, store, sender, _ := newTestProcessor(0)
	ctx := context.Background()

	_, err := store.GetOrCreateUser(ctx, 1, "")
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		store.Now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		_, err := store.RecordLink(ctx, 1, fmt.Sprintf("http://x/%d", i), fmt.Sprintf("link %d", i))
		require.NoError(t, err)
	}

	require.NoError(t, p.handleMessage(ctx, mkMsg(2, 7, "/browse")))

	require.Len(t, sender.messages, 10)
	// newest first
	assert.Contains(t, sender.messages[0].text, "link 11")

	kb := sender.messages[0].kb
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 1)
	require.Len(t, kb.InlineKeyboard[0], 3)
	assert.Equal(t, "like_12", kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "comment_12", kb.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "repost_12", kb.InlineKeyboard[0][2].CallbackData)
}

func TestStats_NonAdminGetsSilence(t *testing.T) {
	p, _, sender, _ := newTestProcessor(42)

	require.NoError(t, p.handleMessage(context.Background(), mkMsg(1, 1, "/stats")))
	assert.Empty(t, sender.messages)
}

func TestStats_AdminGetsAggregates(t *testing.T) {
	p, store, sender, _ := newTestProcessor(42)
	ctx := context.Background()

	_, err := store.GetOrCreateUser(ctx, 1, "")
	require.NoError(t, err)
	require.NoError(t, store.AdjustPoints(ctx, 1, 700))
	_, err = store.RecordLink(ctx, 1, "http://x", "t")
	require.NoError(t, err)

	require.NoError(t, p.handleMessage(ctx, mkMsg(42, 42, "/stats")))

	require.Len(t, sender.messages, 1)
	text := sender.messages[0].text
	assert.Contains(t, text, "Users: 1")
	assert.Contains(t, text, "Links: 1")
	assert.Contains(t, text, "700")
}

func TestStats_DisabledWithoutAdminConfig(t *testing.T) {
	p, _, sender, _ := newTestProcessor(0)

	require.NoError(t, p.handleMessage(context.Background(), mkMsg(1, 1, "/stats")))
	assert.Empty(t, sender.messages)
}

func TestFreeText_RelayedToAssistant(t *testing.T) {
	p, store, sender, ai := newTestProcessor(0)
	ctx := context.Background()

	_, err := store.GetOrCreateUser(ctx, 1, "")
	require.NoError(t, err)
	require.NoError(t, store.AdjustPoints(ctx, 1, 314))

	require.NoError(t, p.handleMessage(ctx, mkMsg(1, 1, "what's my standing?")))

	assert.Equal(t, "what's my standing?", ai.lastText)
	assert.Equal(t, int64(314), ai.lastBalance)

	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0].text, "model says hi")
}

func TestFreeText_FallbackOnAssistantFailure(t *testing.T) {
	p, _, sender, ai := newTestProcessor(0)
	ai.err = errors.New("model unavailable")

	require.NoError(t, p.handleMessage(context.Background(), mkMsg(1, 1, "hello")))

	require.Len(t, sender.messages, 1)
	assert.Equal(t, msgAssistantFallback, sender.messages[0].text)
}

func TestUnknownCommand_Ignored(t *testing.T) {
	p, _, sender, ai := newTestProcessor(0)

	require.NoError(t, p.handleMessage(context.Background(), mkMsg(1, 1, "/frobnicate")))
	assert.Empty(t, sender.messages)
	assert.Empty(t, ai.lastText)
}

func TestCommandWithBotMention(t *testing.T) {
	p, store, _, _ := newTestProcessor(0)

	require.NoError(t, p.handleMessage(context.Background(), mkMsg(9, 9, "/start@linkdrop_bot")))
	_, ok := store.GetUser(9)
	assert.True(t, ok)
}

func TestEnqueueUpdate_Classification(t *testing.T) {
	p, _, _, _ := newTestProcessor(0)

	p.EnqueueUpdate(telegram.Update{Message: mkMsg(1, 1, "hi")})
	p.EnqueueUpdate(telegram.Update{CallbackQuery: &telegram.CallbackQuery{ID: "c", From: &telegram.User{ID: 1}}})
	p.EnqueueUpdate(telegram.Update{}) // neither: dropped

	require.Len(t, p.eventQueue, 2)

	first := <-p.eventQueue
	assert.Equal(t, EventMessage, first.Type)
	assert.NotEmpty(t, first.ID)

	second := <-p.eventQueue
	assert.Equal(t, EventCallback, second.Type)
}

func TestInsufficientFundsMessageWording(t *testing.T) {
	p, store, sender, _ := newTestProcessor(0)
	ctx := context.Background()

	_, err := store.GetOrCreateUser(ctx, 1, "")
	require.NoError(t, err)
	require.NoError(t, store.AdjustPoints(ctx, 1, 999))

	require.NoError(t, p.handleMessage(ctx, mkMsg(1, 1, "/droplink http://x t")))

	require.Len(t, sender.messages, 1)
	assert.True(t, strings.Contains(sender.messages[0].text, "999"))
}
