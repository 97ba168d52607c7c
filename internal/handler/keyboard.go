package handler

import (
	"fmt"

	tele "gopkg.in/telebot.v3"

	"telegram-karma-bot/internal/model"
)

// BuildOfferPanel creates the single button keyboard of a fallback offer.
// The button carries the encoded offer as raw callback data so the update is
// routed to the generic callback handler.
func BuildOfferPanel(offer model.FallbackOffer, receiverName string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	btn := tele.Btn{
		Text: fmt.Sprintf("use my karma as %s for %s", offer.Polarity, receiverName),
		Data: offer.Encode(),
	}

	markup.Inline(markup.Row(btn))
	return markup
}
