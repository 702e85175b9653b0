package notify

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"complaintdesk/internal/account"
	"complaintdesk/internal/complaint"
	"complaintdesk/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Transitioner applies a status change with the same rules as the admin
// dashboard.
type Transitioner interface {
	Apply(ctx context.Context, role account.Role, u complaint.Update) error
}

// Snapshots reads the admin store.
type Snapshots interface {
	Complaint(id int) (complaint.Complaint, bool)
	Complaints() []complaint.Complaint
	DisplayStats() complaint.Stats
}

// Ledger records which complaints were announced and in which message.
type Ledger interface {
	Get(complaintID int) (storage.Record, bool, error)
	SaveMultiple(records []storage.Record) error
}

// RenderFunc draws the summary image as PNG bytes.
type RenderFunc func(stats complaint.Stats, complaints []complaint.Complaint) ([]byte, error)

// Deps are the collaborators the update handler acts through.
type Deps struct {
	Transitions Transitioner
	Snapshots   Snapshots
	Ledger      Ledger
	Render      RenderFunc
}

// HandleUpdates long-polls Telegram and handles button presses, replies
// and commands until ctx is cancelled. Updates from chats other than the
// configured one are ignored.
func (n *Notifier) HandleUpdates(ctx context.Context, deps Deps) {
	if n == nil {
		return
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := n.bot.GetUpdatesChan(u)
	defer n.bot.StopReceivingUpdates()

	n.log.Info().Msg("Telegram update handler started")
	for {
		select {
		case <-ctx.Done():
			n.log.Info().Msg("Telegram update handler stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			n.handleUpdate(ctx, update, deps)
		}
	}
}

func (n *Notifier) handleUpdate(ctx context.Context, update tgbotapi.Update, deps Deps) {
	switch {
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		if q.Message == nil || q.Message.Chat == nil || q.Message.Chat.ID != n.chatID {
			return
		}
		n.handleCallback(ctx, q)
	case update.Message != nil:
		m := update.Message
		if m.Chat == nil || m.Chat.ID != n.chatID {
			return
		}
		if m.IsCommand() {
			n.handleCommand(ctx, m, deps)
			return
		}
		n.handleReply(ctx, m, deps)
	}
}

// parseCallback decodes "status:<id>:<key>".
func parseCallback(data string) (int, complaint.Status, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "status" {
		return 0, "", fmt.Errorf("invalid callback data %q", data)
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid complaint id in %q", data)
	}
	status, err := complaint.ParseStatus(parts[2])
	if err != nil {
		return 0, "", err
	}
	return id, status, nil
}

// handleCallback starts (or toggles off) a status change.
//
// Flow:
//  1. Decode the button's complaint id and target status
//  2. Same button pressed again by the same user: cancel and delete the prompt
//  3. Otherwise remember the pending change and ask for a response
func (n *Notifier) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil {
		return
	}
	id, status, err := parseCallback(q.Data)
	if err != nil {
		n.log.Warn().Err(err).Msg("ignoring callback")
		n.answer(ctx, q.ID, "Invalid action")
		return
	}

	n.mu.Lock()
	if prev, ok := n.pending[q.From.ID]; ok && prev.ComplaintID == id && prev.Status == status {
		delete(n.pending, q.From.ID)
		n.mu.Unlock()

		n.deleteMessage(ctx, prev.PromptMessageID)
		n.answer(ctx, q.ID, "Update cancelled")
		n.log.Info().Int("complaint_id", id).Str("user", q.From.FirstName).Msg("status change cancelled by toggle")
		return
	}
	n.pending[q.From.ID] = pendingUpdate{ComplaintID: id, Status: status, MessageID: q.Message.MessageID}
	n.mu.Unlock()

	prompt := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("📝 Response for complaint <b>#%d</b> → <b>%s</b>:", id, html.EscapeString(string(status))))
	prompt.ParseMode = tgbotapi.ModeHTML
	prompt.ReplyToMessageID = q.Message.MessageID
	prompt.ReplyMarkup = tgbotapi.ForceReply{
		ForceReply:            true,
		InputFieldPlaceholder: "Enter response, or \"cancel\"",
		Selective:             true,
	}

	sent, err := n.send(ctx, "prompt", prompt)
	if err != nil {
		n.log.Warn().Err(err).Msg("failed to send prompt")
		n.answer(ctx, q.ID, "Error sending prompt")
		return
	}

	n.mu.Lock()
	if p, ok := n.pending[q.From.ID]; ok {
		p.PromptMessageID = sent.MessageID
		n.pending[q.From.ID] = p
	}
	n.mu.Unlock()

	n.answer(ctx, q.ID, "Please send your response")
}

// handleReply completes a pending status change with the message text.
func (n *Notifier) handleReply(ctx context.Context, m *tgbotapi.Message, deps Deps) {
	if m.From == nil || strings.TrimSpace(m.Text) == "" {
		return
	}

	n.mu.Lock()
	p, ok := n.pending[m.From.ID]
	if ok {
		delete(n.pending, m.From.ID)
	}
	n.mu.Unlock()
	if !ok {
		return
	}

	n.deleteMessage(ctx, p.PromptMessageID)

	if strings.EqualFold(strings.TrimSpace(m.Text), "cancel") {
		n.sendText(ctx, "cancelled", "❌ Update cancelled.")
		return
	}

	u := complaint.Update{ID: p.ComplaintID, Status: p.Status, Response: strings.TrimSpace(m.Text)}
	if err := deps.Transitions.Apply(ctx, account.RoleAdmin, u); err != nil {
		n.log.Warn().Err(err).Int("complaint_id", p.ComplaintID).Msg("status change from Telegram failed")
		n.sendText(ctx, "update_failed", fmt.Sprintf("❌ Failed to update complaint <b>#%d</b>: %s", p.ComplaintID, html.EscapeString(err.Error())))
		return
	}

	c, found := deps.Snapshots.Complaint(p.ComplaintID)
	if !found {
		c = complaint.Complaint{ID: p.ComplaintID, Status: p.Status, Response: u.Response}
	}
	if err := n.AnnounceStatusChange(ctx, p.MessageID, c); err != nil {
		n.log.Warn().Err(err).Msg("failed to edit announcement")
	}
	n.recordStatus(c, p.MessageID, deps.Ledger)
	n.log.Info().Int("complaint_id", c.ID).Str("status", string(c.Status)).Str("user", m.From.FirstName).Msg("status changed from Telegram")
}

// recordStatus keeps the ledger in step so the next watch cycle does not
// announce the same change again.
func (n *Notifier) recordStatus(c complaint.Complaint, messageID int, ledger Ledger) {
	if ledger == nil {
		return
	}
	rec, ok, err := ledger.Get(c.ID)
	if err != nil {
		n.log.Warn().Err(err).Int("complaint_id", c.ID).Msg("ledger read failed")
		return
	}
	if !ok {
		rec = storage.Record{ComplaintID: c.ID, MessageID: messageID, Title: c.Title}
	}
	rec.Status = c.Status
	if err := ledger.SaveMultiple([]storage.Record{rec}); err != nil {
		n.log.Warn().Err(err).Int("complaint_id", c.ID).Msg("ledger write failed")
	}
}

func (n *Notifier) handleCommand(ctx context.Context, m *tgbotapi.Message, deps Deps) {
	switch m.Command() {
	case "stats":
		n.sendText(ctx, "stats", formatStats(deps.Snapshots.DisplayStats()))
	case "summary":
		if deps.Render == nil {
			return
		}
		png, err := deps.Render(deps.Snapshots.DisplayStats(), deps.Snapshots.Complaints())
		if err != nil {
			n.log.Warn().Err(err).Msg("summary render failed")
			n.sendText(ctx, "summary_failed", "❌ Could not render the summary.")
			return
		}
		photo := tgbotapi.NewPhoto(n.chatID, tgbotapi.FileBytes{Name: "summary.png", Bytes: png})
		photo.Caption = "Complaint summary"
		if _, err := n.send(ctx, "summary", photo); err != nil {
			n.log.Warn().Err(err).Msg("failed to send summary")
		}
	case "start", "help":
		n.sendText(ctx, "help", "Commands:\n/stats - current counts\n/summary - complaint table as an image")
	}
}

func formatStats(s complaint.Stats) string {
	return fmt.Sprintf(
		"📊 <b>Complaints</b>\n\n"+
			"Total: <b>%d</b>\n"+
			"%s Pending: %d\n"+
			"%s In Progress: %d\n"+
			"%s Resolved: %d\n"+
			"%s Rejected: %d",
		s.Total,
		statusIcons[complaint.StatusPending], s.Pending,
		statusIcons[complaint.StatusInProgress], s.InProgress,
		statusIcons[complaint.StatusResolved], s.Resolved,
		statusIcons[complaint.StatusRejected], s.Rejected,
	)
}

func (n *Notifier) answer(ctx context.Context, callbackID, text string) {
	if err := n.request(ctx, "callback", tgbotapi.NewCallback(callbackID, text)); err != nil {
		n.log.Debug().Err(err).Msg("failed to answer callback")
	}
}

func (n *Notifier) deleteMessage(ctx context.Context, messageID int) {
	if messageID == 0 {
		return
	}
	if err := n.request(ctx, "delete", tgbotapi.NewDeleteMessage(n.chatID, messageID)); err != nil {
		n.log.Debug().Err(err).Int("message_id", messageID).Msg("failed to delete prompt")
	}
}
