package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-karma-bot/internal/chart"
	"telegram-karma-bot/internal/model"
	"telegram-karma-bot/internal/service"
)

const (
	noMembersText = "<i>There are no members with karma in this group.</i>"
	noDataText    = "<i>There is no data to display.</i>"
)

// GroupHandler handles the group commands /leaderboard and /chart.
type GroupHandler struct {
	ranking *service.RankingService
	notify  *Notifier
	api     Messenger
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(ranking *service.RankingService, notify *Notifier, api Messenger) *GroupHandler {
	return &GroupHandler{
		ranking: ranking,
		notify:  notify,
		api:     api,
	}
}

// HandleLeaderboard handles the /leaderboard command.
func (h *GroupHandler) HandleLeaderboard(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	if !isGroup(chat) {
		return nil
	}

	entries, ok, err := h.ranking.Leaderboard(ctx, chat.ID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to build leaderboard")
		return nil
	}
	if !ok {
		return c.Send(noMembersText)
	}

	var sb strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. %s : %d\n", i+1, mentionByID(h.api, e.UserID), e.Karma)
	}

	if _, err := h.notify.Replace(ctx, chat, model.SlotLeaderboard, sb.String()); err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to post leaderboard")
	}
	return nil
}

// HandleChart handles the /chart command. It charts the sender, or the author
// of the replied message when used as a reply.
func (h *GroupHandler) HandleChart(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	user := c.Sender()
	if !isGroup(chat) || user == nil {
		return nil
	}
	if msg := c.Message(); msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		user = msg.ReplyTo.Sender
	}

	samples, err := h.ranking.History(ctx, user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to load history")
		return nil
	}

	var buf bytes.Buffer
	if err := chart.Render(samples, &buf); err != nil {
		if errors.Is(err, chart.ErrInsufficientData) {
			return c.Send(noDataText)
		}
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to render chart")
		return nil
	}

	photo := &tele.Photo{
		File:    tele.FromReader(&buf),
		Caption: "Karma chart for " + mentionUser(user),
	}
	if _, err := h.notify.Replace(ctx, chat, model.SlotChart, photo); err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to post chart")
	}
	return nil
}
