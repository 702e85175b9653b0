// Package notify provides the Telegram channel of the admin watch daemon.
//
// This package handles:
//   - Announcing new complaints with inline status buttons
//   - Editing announcements when a complaint's status changes
//   - Collecting an administrator's response through a force-reply prompt
//   - Answering /summary and /stats commands
//   - Critical alerts when the daemon cannot recover
//
// A nil *Notifier is valid and turns every send into a no-op, so callers do
// not need to check whether Telegram is configured.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"complaintdesk/internal/complaint"
	"complaintdesk/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// botAPI is the part of *tgbotapi.BotAPI the notifier uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Options configures a Notifier.
type Options struct {
	ChatID int64

	// Debug logs every outgoing message instead of sending it.
	Debug bool

	// Rate is the maximum number of sends per second.
	Rate float64
}

// pendingUpdate is a status change waiting for the administrator's
// response text.
type pendingUpdate struct {
	ComplaintID     int
	Status          complaint.Status
	MessageID       int
	PromptMessageID int
}

// Notifier sends complaint announcements to one Telegram chat.
//
// Thread-safety:
//   - pending is protected by mu
//   - Sends may be issued from the watch loop and the update handler at once
type Notifier struct {
	bot     botAPI
	chatID  int64
	debug   bool
	limiter *rate.Limiter
	log     zerolog.Logger

	mu      sync.Mutex
	pending map[int64]pendingUpdate
}

// New creates a Notifier around an API client.
func New(bot botAPI, opts Options, log zerolog.Logger) *Notifier {
	if opts.Rate <= 0 {
		opts.Rate = 20
	}
	return &Notifier{
		bot:     bot,
		chatID:  opts.ChatID,
		debug:   opts.Debug,
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), 1),
		log:     log.With().Str("component", "telegram").Logger(),
		pending: make(map[int64]pendingUpdate),
	}
}

// Connect creates a Notifier for the bot identified by token.
//
// Returns:
//   - *Notifier: Ready notifier, or nil when token or chatID is missing
//   - error: If the token is rejected by Telegram
func Connect(token string, opts Options, log zerolog.Logger) (*Notifier, error) {
	if token == "" || opts.ChatID == 0 {
		log.Warn().Bool("token_set", token != "").Bool("chat_set", opts.ChatID != 0).Msg("Telegram not configured, notifications disabled")
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect Telegram bot: %w", err)
	}
	log.Info().Str("bot", bot.Self.UserName).Bool("debug", opts.Debug).Msg("Telegram configured")
	return New(bot, opts, log), nil
}

// send rate-limits and sends c, or only logs it in debug mode.
func (n *Notifier) send(ctx context.Context, kind string, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if n.debug {
		n.log.Debug().Str("kind", kind).Interface("payload", c).Msg("debug mode, message not sent")
		return tgbotapi.Message{}, nil
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}

	msg, err := n.bot.Send(c)
	metrics.NotificationsTotal.WithLabelValues(kind, metrics.Outcome(err)).Inc()
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("telegram %s: %w", kind, err)
	}
	return msg, nil
}

// request is send for calls whose answer is not a message.
func (n *Notifier) request(ctx context.Context, kind string, c tgbotapi.Chattable) error {
	if n.debug {
		n.log.Debug().Str("kind", kind).Interface("payload", c).Msg("debug mode, request not sent")
		return nil
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := n.bot.Request(c)
	metrics.NotificationsTotal.WithLabelValues(kind, metrics.Outcome(err)).Inc()
	if err != nil {
		return fmt.Errorf("telegram %s: %w", kind, err)
	}
	return nil
}

func (n *Notifier) sendText(ctx context.Context, kind, text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.send(ctx, kind, msg); err != nil {
		n.log.Warn().Err(err).Str("kind", kind).Msg("failed to send message")
	}
}

// AnnounceComplaint posts a new complaint with status buttons.
//
// Returns:
//   - int: Telegram message ID, 0 in debug mode or when n is nil
//   - error: Send error
func (n *Notifier) AnnounceComplaint(ctx context.Context, c complaint.Complaint) (int, error) {
	if n == nil {
		return 0, nil
	}

	msg := tgbotapi.NewMessage(n.chatID, formatComplaint(c))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = statusKeyboard(c)

	sent, err := n.send(ctx, "announce", msg)
	if err != nil {
		return 0, err
	}
	n.log.Info().Int("complaint_id", c.ID).Int("message_id", sent.MessageID).Msg("complaint announced")
	return sent.MessageID, nil
}

// AnnounceStatusChange rewrites an announcement to show c's current state.
func (n *Notifier) AnnounceStatusChange(ctx context.Context, messageID int, c complaint.Complaint) error {
	if n == nil || messageID == 0 {
		return nil
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(n.chatID, messageID, formatComplaint(c), statusKeyboard(c))
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := n.send(ctx, "status_change", edit)
	return err
}

// AnnounceRemoved marks an announcement as no longer listed by the service
// and removes its buttons.
func (n *Notifier) AnnounceRemoved(ctx context.Context, messageID, complaintID int) error {
	if n == nil || messageID == 0 {
		return nil
	}

	text := fmt.Sprintf("🗑 Complaint <b>#%d</b> is no longer listed.\n🕐 %s", complaintID, time.Now().Format("02 Jan 2006, 03:04 PM"))
	edit := tgbotapi.NewEditMessageText(n.chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	_, err := n.send(ctx, "removed", edit)
	return err
}

// SendCriticalAlert reports a failure that needs manual intervention.
//
// Parameters:
//   - errorType: Short category (e.g. "Fetch/Login Failure")
//   - errorMsg: Error detail
//   - retryCount: Attempts made before giving up
func (n *Notifier) SendCriticalAlert(ctx context.Context, errorType, errorMsg string, retryCount int) error {
	if n == nil {
		return nil
	}

	text := fmt.Sprintf(
		"🚨 <b>CRITICAL ALERT - COMPLAINTDESK</b>\n\n"+
			"<b>Error Type:</b> %s\n"+
			"<b>Error Message:</b> %s\n"+
			"<b>Retry Attempts:</b> %d\n"+
			"<b>Timestamp:</b> %s\n\n"+
			"⚠️ <b>Action Required:</b> Please check the service immediately.",
		html.EscapeString(errorType),
		html.EscapeString(errorMsg),
		retryCount,
		time.Now().Format("2006-01-02 15:04:05"),
	)

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := n.send(ctx, "alert", msg)
	return err
}

var statusIcons = map[complaint.Status]string{
	complaint.StatusPending:    "⏳",
	complaint.StatusInProgress: "🔧",
	complaint.StatusResolved:   "✅",
	complaint.StatusRejected:   "⛔",
}

func formatComplaint(c complaint.Complaint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Complaint <b>#%d</b>: %s\n\n", c.ID, html.EscapeString(c.Title))
	fmt.Fprintf(&b, "📂 %s\n", html.EscapeString(c.Subject))
	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", statusIcons[c.Status], html.EscapeString(string(c.Status)))
	fmt.Fprintf(&b, "💬 <b>Details:</b>\n%s", html.EscapeString(c.Description))
	if c.Response != "" {
		fmt.Fprintf(&b, "\n\n🗒 <b>Response:</b>\n%s", html.EscapeString(c.Response))
	}
	return b.String()
}

// callbackData encodes a status button as "status:<id>:<key>".
func callbackData(id int, s complaint.Status) string {
	return fmt.Sprintf("status:%d:%s", id, s.Key())
}

// statusKeyboard offers every status except the current one.
func statusKeyboard(c complaint.Complaint) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range complaint.Statuses {
		if s == c.Status {
			continue
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(statusIcons[s]+" "+string(s), callbackData(c.ID, s)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
