// Package handler provides the Telegram update handlers of the karma bot.
package handler

import (
	"fmt"
	"html"
	"strings"

	tele "gopkg.in/telebot.v3"
)

// Messenger is the subset of the Telegram API used outside of a reply to the
// current update. *tele.Bot implements it.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
	ChatByID(id int64) (*tele.Chat, error)
}

func isGroup(chat *tele.Chat) bool {
	return chat != nil && (chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup)
}

func isPrivate(chat *tele.Chat) bool {
	return chat != nil && chat.Type == tele.ChatPrivate
}

func link(id int64, name string) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, id, html.EscapeString(name))
}

func displayName(username, firstName string) string {
	if username != "" {
		return "@" + username
	}
	if firstName != "" {
		return firstName
	}
	return "N/A"
}

// mentionUser renders an HTML mention of a user.
func mentionUser(u *tele.User) string {
	return link(u.ID, displayName(u.Username, u.FirstName))
}

// mentionChat renders an HTML mention of a private chat.
func mentionChat(c *tele.Chat) string {
	return link(c.ID, displayName(c.Username, c.FirstName))
}

// mentionID renders a mention for a user whose profile is unavailable.
func mentionID(id int64) string {
	return link(id, fmt.Sprintf("%d", id))
}

// mentionByID looks the user up and falls back to a bare id mention.
func mentionByID(api Messenger, id int64) string {
	chat, err := api.ChatByID(id)
	if err != nil || chat == nil {
		return mentionID(id)
	}
	return mentionChat(chat)
}

func fullName(u *tele.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
