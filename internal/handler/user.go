package handler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-karma-bot/internal/service"
)

// UserHandler handles the private chat commands.
type UserHandler struct {
	ranking *service.RankingService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(ranking *service.RankingService) *UserHandler {
	return &UserHandler{ranking: ranking}
}

// HandleStats handles /start and /stats.
func (h *UserHandler) HandleStats(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || !isPrivate(c.Chat()) {
		return nil
	}

	stats, err := h.ranking.Stats(context.Background(), sender.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to load stats")
		return nil
	}

	return c.Send(fmt.Sprintf(
		"Your stats: \n"+
			"- %d karma\n"+
			"- %d + available today\n"+
			"- %d - available today",
		stats.Karma, stats.Up, stats.Down,
	))
}
