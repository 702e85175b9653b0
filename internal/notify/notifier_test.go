package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"complaintdesk/internal/account"
	"complaintdesk/internal/complaint"
	"complaintdesk/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatID int64 = -1001

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
	sendErr  error
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{nextID: 100, updates: make(chan tgbotapi.Update)}
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return tgbotapi.Message{}, b.sendErr
	}
	b.sent = append(b.sent, c)
	b.nextID++
	return tgbotapi.Message{MessageID: b.nextID}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
}

func (b *fakeBot) lastSent() tgbotapi.Chattable {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		return nil
	}
	return b.sent[len(b.sent)-1]
}

type fakeTransitions struct {
	applied []complaint.Update
	roles   []account.Role
	err     error
}

func (f *fakeTransitions) Apply(ctx context.Context, role account.Role, u complaint.Update) error {
	f.roles = append(f.roles, role)
	f.applied = append(f.applied, u)
	return f.err
}

type fakeSnapshots struct {
	list  []complaint.Complaint
	stats complaint.Stats
}

func (f *fakeSnapshots) Complaint(id int) (complaint.Complaint, bool) {
	for _, c := range f.list {
		if c.ID == id {
			return c, true
		}
	}
	return complaint.Complaint{}, false
}
func (f *fakeSnapshots) Complaints() []complaint.Complaint { return f.list }
func (f *fakeSnapshots) DisplayStats() complaint.Stats     { return f.stats }

var ctx = context.Background()

var fan = complaint.Complaint{ID: 7, Title: "Fan <broken>", Subject: "Hostel", Description: "Noisy", Status: complaint.StatusPending}

func newTestNotifier(bot botAPI) *Notifier {
	return New(bot, Options{ChatID: chatID, Rate: 1000}, zerolog.Nop())
}

func callback(userID int64, data string, messageID int) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID, FirstName: "Ravi"},
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func reply(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 999,
		From:      &tgbotapi.User{ID: userID, FirstName: "Ravi"},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}}
}

func command(name string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 999,
		From:      &tgbotapi.User{ID: 1},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      "/" + name,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name) + 1}},
	}}
}

func TestNilNotifierIsNoop(t *testing.T) {
	var n *Notifier
	id, err := n.AnnounceComplaint(ctx, fan)
	assert.NoError(t, err)
	assert.Zero(t, id)
	assert.NoError(t, n.AnnounceStatusChange(ctx, 5, fan))
	assert.NoError(t, n.AnnounceRemoved(ctx, 5, 7))
	assert.NoError(t, n.SendCriticalAlert(ctx, "x", "y", 3))
}

func TestConnectWithoutConfigReturnsNil(t *testing.T) {
	n, err := Connect("", Options{ChatID: chatID}, zerolog.Nop())
	assert.NoError(t, err)
	assert.Nil(t, n)
}

func TestAnnounceComplaint(t *testing.T) {
	bot := newFakeBot()
	n := newTestNotifier(bot)

	id, err := n.AnnounceComplaint(ctx, fan)
	require.NoError(t, err)
	assert.Equal(t, 101, id)

	msg, ok := bot.lastSent().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, chatID, msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "#7")
	assert.Contains(t, msg.Text, "Fan &lt;broken&gt;")

	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	var data []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			data = append(data, *btn.CallbackData)
		}
	}
	assert.Equal(t, []string{"status:7:in_progress", "status:7:resolved", "status:7:rejected"}, data)
}

func TestDebugModeSendsNothing(t *testing.T) {
	bot := newFakeBot()
	n := New(bot, Options{ChatID: chatID, Debug: true}, zerolog.Nop())

	id, err := n.AnnounceComplaint(ctx, fan)
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.Nil(t, bot.lastSent())
}

func TestSendErrorIsReturned(t *testing.T) {
	bot := newFakeBot()
	bot.sendErr = errors.New("429 too many requests")
	n := newTestNotifier(bot)

	_, err := n.AnnounceComplaint(ctx, fan)
	assert.ErrorIs(t, err, bot.sendErr)
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data    string
		id      int
		status  complaint.Status
		wantErr bool
	}{
		{"status:7:in_progress", 7, complaint.StatusInProgress, false},
		{"status:12:rejected", 12, complaint.StatusRejected, false},
		{"resolve:7", 0, "", true},
		{"status:x:resolved", 0, "", true},
		{"status:0:resolved", 0, "", true},
		{"status:7:closed", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			id, status, err := parseCallback(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestStatusChangeThroughReply(t *testing.T) {
	bot := newFakeBot()
	n := newTestNotifier(bot)
	trans := &fakeTransitions{}
	resolved := fan
	resolved.Status = complaint.StatusResolved
	resolved.Response = "Replaced"
	ledger, err := storage.Open(storage.Options{InMemory: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer ledger.Close()
	require.NoError(t, ledger.SaveMultiple([]storage.Record{{ComplaintID: 7, MessageID: 50, Status: complaint.StatusPending}}))

	deps := Deps{Transitions: trans, Snapshots: &fakeSnapshots{list: []complaint.Complaint{resolved}}, Ledger: ledger}

	n.handleUpdate(ctx, callback(1, "status:7:resolved", 50), deps)
	prompt, ok := bot.lastSent().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, 50, prompt.ReplyToMessageID)
	_, forced := prompt.ReplyMarkup.(tgbotapi.ForceReply)
	assert.True(t, forced)

	n.handleUpdate(ctx, reply(1, "  Replaced  "), deps)
	require.Len(t, trans.applied, 1)
	assert.Equal(t, complaint.Update{ID: 7, Status: complaint.StatusResolved, Response: "Replaced"}, trans.applied[0])
	assert.Equal(t, account.RoleAdmin, trans.roles[0])

	edit, ok := bot.lastSent().(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 50, edit.MessageID)
	assert.Contains(t, edit.Text, "Resolved")

	rec, found, err := ledger.Get(7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, complaint.StatusResolved, rec.Status)

	// The prompt was deleted once answered.
	var deleted bool
	for _, r := range bot.requests {
		if _, ok := r.(tgbotapi.DeleteMessageConfig); ok {
			deleted = true
		}
	}
	assert.True(t, deleted)
}

func TestToggleCancelsPendingChange(t *testing.T) {
	bot := newFakeBot()
	n := newTestNotifier(bot)
	trans := &fakeTransitions{}
	deps := Deps{Transitions: trans, Snapshots: &fakeSnapshots{}}

	n.handleUpdate(ctx, callback(1, "status:7:rejected", 50), deps)
	n.handleUpdate(ctx, callback(1, "status:7:rejected", 50), deps)
	n.handleUpdate(ctx, reply(1, "too late"), deps)

	assert.Empty(t, trans.applied)
}

func TestCancelKeyword(t *testing.T) {
	bot := newFakeBot()
	n := newTestNotifier(bot)
	trans := &fakeTransitions{}
	deps := Deps{Transitions: trans, Snapshots: &fakeSnapshots{}}

	n.handleUpdate(ctx, callback(1, "status:7:rejected", 50), deps)
	n.handleUpdate(ctx, reply(1, "Cancel"), deps)

	assert.Empty(t, trans.applied)
	msg, ok := bot.lastSent().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "❌ Update cancelled.", msg.Text)
}

func TestFailedTransitionIsReported(t *testing.T) {
	bot := newFakeBot()
	n := newTestNotifier(bot)
	trans := &fakeTransitions{err: errors.New("server said no")}
	deps := Deps{Transitions: trans, Snapshots: &fakeSnapshots{}}

	n.handleUpdate(ctx, callback(1, "status:7:resolved", 50), deps)
	n.handleUpdate(ctx, reply(1, "done"), deps)

	msg, ok := bot.lastSent().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Failed to update complaint <b>#7</b>")
	assert.Contains(t, msg.Text, "server said no")
}

func TestOtherChatsAreIgnored(t *testing.T) {
	bot := newFakeBot()
	n := newTestNotifier(bot)
	trans := &fakeTransitions{}
	deps := Deps{Transitions: trans, Snapshots: &fakeSnapshots{}}

	up := callback(1, "status:7:resolved", 50)
	up.CallbackQuery.Message.Chat.ID = 42
	n.handleUpdate(ctx, up, deps)

	assert.Nil(t, bot.lastSent())
}

func TestCommands(t *testing.T) {
	bot := newFakeBot()
	n := newTestNotifier(bot)
	snaps := &fakeSnapshots{list: []complaint.Complaint{fan}, stats: complaint.Stats{Total: 1, Pending: 1}}

	var rendered []complaint.Complaint
	deps := Deps{Snapshots: snaps, Render: func(stats complaint.Stats, list []complaint.Complaint) ([]byte, error) {
		rendered = list
		return []byte("png"), nil
	}}

	n.handleUpdate(ctx, command("stats"), deps)
	msg, ok := bot.lastSent().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Total: <b>1</b>")

	n.handleUpdate(ctx, command("summary"), deps)
	photo, ok := bot.lastSent().(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, "Complaint summary", photo.Caption)
	assert.Equal(t, []complaint.Complaint{fan}, rendered)
}

func TestHandleUpdatesStopsOnCancel(t *testing.T) {
	bot := newFakeBot()
	n := newTestNotifier(bot)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		n.HandleUpdates(ctx, Deps{Snapshots: &fakeSnapshots{}})
		close(done)
	}()

	bot.updates <- command("stats")
	assert.Eventually(t, func() bool { return bot.lastSent() != nil }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	bot.mu.Lock()
	defer bot.mu.Unlock()
	assert.True(t, bot.stopped)
	assert.Len(t, bot.sent, 1)
}
