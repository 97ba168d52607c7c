package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-karma-bot/internal/model"
	"telegram-karma-bot/internal/service"
)

// KarmaHandler turns "+"/"-" replies into grants and handles the fallback
// confirmation button.
type KarmaHandler struct {
	transfer *service.TransferService
	notify   *Notifier
	api      Messenger
}

// NewKarmaHandler creates a new KarmaHandler.
func NewKarmaHandler(transfer *service.TransferService, notify *Notifier, api Messenger) *KarmaHandler {
	return &KarmaHandler{
		transfer: transfer,
		notify:   notify,
		api:      api,
	}
}

// HandleText handles group messages. A reply whose text starts with "+" or
// "-" grants karma to the author of the replied message.
func (h *KarmaHandler) HandleText(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()
	giver := c.Sender()
	if msg == nil || giver == nil || !isGroup(msg.Chat) {
		return nil
	}
	if msg.ReplyTo == nil || msg.ReplyTo.Sender == nil {
		return nil
	}

	polarity, ok := model.ParsePolarity(msg.Text)
	if !ok {
		return nil
	}

	receiver := msg.ReplyTo.Sender
	result, err := h.transfer.Grant(ctx, model.GrantRequest{
		ChatID:      msg.Chat.ID,
		GiverID:     giver.ID,
		ReceiverID:  receiver.ID,
		Polarity:    polarity,
		GiverBot:    giver.IsBot,
		ReceiverBot: receiver.IsBot,
	})
	if err != nil {
		log.Error().Err(err).
			Int64("chat_id", msg.Chat.ID).
			Int64("user_id", giver.ID).
			Int64("receiver_id", receiver.ID).
			Msg("Grant failed")
		return nil
	}

	switch result.Outcome {
	case model.GrantApplied:
		text := fmt.Sprintf("reputation of %s (%d)", mentionUser(receiver), result.ReceiverBalance)
		if _, err := h.notify.Replace(ctx, msg.Chat, model.ReceiverSlot(receiver.ID), text); err != nil {
			log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Failed to post grant")
		}

	case model.GrantFallbackOffered:
		markup := BuildOfferPanel(result.Offer(), fullName(receiver))
		text := fmt.Sprintf("<i>no more %s points available today</i>", polarity)
		if _, err := h.notify.Replace(ctx, msg.Chat, model.SlotStatus, text, markup); err != nil {
			log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Failed to post fallback offer")
		}

	default:
		log.Debug().
			Int64("user_id", giver.ID).
			Int64("receiver_id", receiver.ID).
			Str("outcome", result.Outcome.String()).
			Msg("Grant dropped")
	}

	return nil
}

// HandleCallback handles presses of the fallback offer button. Whoever presses
// the button is the giver.
func (h *KarmaHandler) HandleCallback(c tele.Context) error {
	ctx := context.Background()
	cb := c.Callback()
	if cb == nil || cb.Sender == nil {
		return nil
	}

	offer, err := model.ParseFallbackOffer(strings.TrimPrefix(cb.Data, "\f"))
	if err != nil {
		log.Debug().Err(err).Str("data", cb.Data).Msg("Ignoring unknown callback")
		return c.Respond()
	}

	req := model.GrantRequest{
		GiverID:    cb.Sender.ID,
		ReceiverID: offer.ReceiverID,
		Polarity:   offer.Polarity,
		GiverBot:   cb.Sender.IsBot,
	}
	if cb.Message != nil && cb.Message.Chat != nil {
		req.ChatID = cb.Message.Chat.ID
	}

	result, err := h.transfer.ConfirmFallback(ctx, req)
	if err != nil {
		log.Error().Err(err).
			Int64("user_id", req.GiverID).
			Int64("receiver_id", req.ReceiverID).
			Msg("Fallback confirmation failed")
		return c.Respond()
	}

	if result.Outcome == model.GrantInsufficientKarma {
		return c.Respond(&tele.CallbackResponse{Text: "not enough karma"})
	}
	if result.Outcome != model.GrantFallbackApplied {
		return c.Respond()
	}

	if err := c.Respond(&tele.CallbackResponse{Text: "thanks!"}); err != nil {
		log.Debug().Err(err).Msg("Failed to answer callback")
	}

	if cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}

	text := fmt.Sprintf(
		"%s reputation of %s (%d)\n<i>thanks to %s's %s (%d)</i>",
		result.Polarity,
		mentionByID(h.api, result.ReceiverID),
		result.ReceiverBalance,
		mentionUser(cb.Sender),
		result.Source,
		result.GiverBalance,
	)

	edited, err := h.api.Edit(cb.Message, text)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", req.ChatID).Msg("Failed to edit fallback offer")
		return nil
	}
	if edited == nil {
		edited = cb.Message
	}
	if edited.Chat == nil {
		edited.Chat = cb.Message.Chat
	}

	if err := h.notify.Adopt(ctx, edited, model.ReceiverSlot(result.ReceiverID)); err != nil {
		log.Error().Err(err).Int64("chat_id", req.ChatID).Msg("Failed to record grant message")
	}
	return nil
}
