package handler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-karma-bot/internal/repository"
)

// Notifier keeps at most one live bot message per chat and slot. Posting to a
// slot deletes the message previously posted there.
type Notifier struct {
	ledger *repository.Ledger
	api    Messenger
}

// NewNotifier creates a new Notifier.
func NewNotifier(ledger *repository.Ledger, api Messenger) *Notifier {
	return &Notifier{ledger: ledger, api: api}
}

// Replace sends what to chat and records it as the message of slot.
func (n *Notifier) Replace(ctx context.Context, chat *tele.Chat, slot string, what interface{}, opts ...interface{}) (*tele.Message, error) {
	n.discard(ctx, chat, slot, 0)

	msg, err := n.api.Send(chat, what, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s message: %w", slot, err)
	}

	if err := n.ledger.SetLastMessage(ctx, chat.ID, slot, msg.ID); err != nil {
		return msg, fmt.Errorf("failed to record %s message: %w", slot, err)
	}
	return msg, nil
}

// Adopt records an existing bot message as the message of slot, deleting the
// one it replaces.
func (n *Notifier) Adopt(ctx context.Context, msg *tele.Message, slot string) error {
	n.discard(ctx, msg.Chat, slot, msg.ID)

	if err := n.ledger.SetLastMessage(ctx, msg.Chat.ID, slot, msg.ID); err != nil {
		return fmt.Errorf("failed to record %s message: %w", slot, err)
	}
	return nil
}

// discard deletes the message recorded for slot unless it is keep.
// Failures are logged and ignored: the old message may already be gone.
func (n *Notifier) discard(ctx context.Context, chat *tele.Chat, slot string, keep int) {
	id, ok, err := n.ledger.LastMessage(ctx, chat.ID, slot)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chat.ID).Str("slot", slot).Msg("Failed to read last message")
		return
	}
	if !ok || id == keep {
		return
	}

	if err := n.api.Delete(&tele.Message{ID: id, Chat: chat}); err != nil {
		log.Debug().Err(err).Int("msg_id", id).Int64("chat_id", chat.ID).Msg("Failed to delete previous message")
	}
}
