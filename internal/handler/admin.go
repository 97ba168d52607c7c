package handler

import (
	"context"
	"fmt"
	"html"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-karma-bot/internal/service"
)

const resetDoneText = "Reset complete."

// AdminHandler handles the admin commands. Replies go to the admin's private
// chat.
type AdminHandler struct {
	admin *service.AdminService
	api   Messenger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin *service.AdminService, api Messenger) *AdminHandler {
	return &AdminHandler{
		admin: admin,
		api:   api,
	}
}

// HandleReset handles the /reset command.
// Format: /reset <user_id>
func (h *AdminHandler) HandleReset(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return h.tell(sender, "Usage: /reset <user id>")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return h.tell(sender, "Invalid user id.")
	}

	if _, err := h.admin.ResetUser(context.Background(), userID); err != nil {
		log.Error().Err(err).Int64("admin_id", sender.ID).Int64("target_id", userID).Msg("Reset failed")
		return nil
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", userID).
		Str("operation", "reset").
		Msg("Admin operation executed")
	return h.tell(sender, resetDoneText)
}

// HandleResetAll handles the /resetall command.
func (h *AdminHandler) HandleResetAll(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if err := h.admin.ResetAll(context.Background()); err != nil {
		log.Error().Err(err).Int64("admin_id", sender.ID).Msg("Reset all failed")
		return nil
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Str("operation", "resetall").
		Msg("Admin operation executed")
	return h.tell(sender, resetDoneText)
}

// HandleInfo handles /info sent as a reply: the replied user's name and id
// are sent to the admin privately and the command message is removed.
func (h *AdminHandler) HandleInfo(c tele.Context) error {
	sender := c.Sender()
	msg := c.Message()
	if sender == nil || msg == nil || msg.ReplyTo == nil || msg.ReplyTo.Sender == nil {
		return nil
	}

	user := msg.ReplyTo.Sender
	text := fmt.Sprintf("User info %s: \n- ID: %d", html.EscapeString(fullName(user)), user.ID)
	if err := h.tell(sender, text); err != nil {
		return err
	}

	if err := h.api.Delete(msg); err != nil {
		log.Debug().Err(err).Int("msg_id", msg.ID).Msg("Failed to delete info command")
	}
	return nil
}

func (h *AdminHandler) tell(admin *tele.User, text string) error {
	if _, err := h.api.Send(admin, text); err != nil {
		return fmt.Errorf("failed to message admin: %w", err)
	}
	return nil
}
