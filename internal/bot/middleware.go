package bot

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-karma-bot/internal/config"
)

// PrivateAccess remembers users seen in an allowed group. Only they may talk
// to the bot privately while a whitelist is configured.
type PrivateAccess struct {
	mu    sync.RWMutex
	users map[int64]struct{}
}

// NewPrivateAccess creates an empty PrivateAccess.
func NewPrivateAccess() *PrivateAccess {
	return &PrivateAccess{users: make(map[int64]struct{})}
}

// Allow marks a user as allowed to use the private chat.
func (p *PrivateAccess) Allow(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userID] = struct{}{}
}

// Allowed reports whether a user may use the private chat.
func (p *PrivateAccess) Allowed(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.users[userID]
	return ok
}

// WhitelistMiddleware drops updates from chats that are not whitelisted.
func WhitelistMiddleware(cfg *config.Config, access *PrivateAccess) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			sender := c.Sender()

			if chat == nil || sender == nil {
				return nil
			}

			if chat.Type == tele.ChatPrivate {
				if len(cfg.Whitelist.Chats) == 0 || access.Allowed(sender.ID) {
					return next(c)
				}
				log.Debug().
					Int64("user_id", sender.ID).
					Msg("Ignoring private chat from user not seen in an allowed group")
				return nil
			}

			if !cfg.IsChatAllowed(chat.ID) {
				log.Debug().
					Int64("chat_id", chat.ID).
					Msg("Ignoring update from non-whitelisted chat")
				return nil
			}

			access.Allow(sender.ID)
			return next(c)
		}
	}
}

// AdminMiddleware silently drops commands from users that are not admins.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}

			if !cfg.IsAdmin(sender.ID) {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return nil
			}

			return next(c)
		}
	}
}

// LoggingMiddleware logs every incoming update at debug level, tagged with
// what kind of karma interaction it may be.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			event := log.Debug().Int("update_id", c.Update().ID)
			if sender := c.Sender(); sender != nil {
				event = event.Int64("user_id", sender.ID)
			}
			if chat := c.Chat(); chat != nil {
				event = event.Int64("chat_id", chat.ID)
			}

			kind := updateKind(c)
			switch kind {
			case "callback":
				event = event.Str("data", c.Callback().Data)
			case "reply":
				if to := c.Message().ReplyTo.Sender; to != nil {
					event = event.Int64("reply_to", to.ID)
				}
			}
			event.Str("kind", kind).Msg("Received update")

			return next(c)
		}
	}
}

func updateKind(c tele.Context) string {
	if c.Callback() != nil {
		return "callback"
	}
	msg := c.Message()
	switch {
	case msg == nil:
		return "other"
	case strings.HasPrefix(msg.Text, "/"):
		return "command"
	case msg.ReplyTo != nil:
		return "reply"
	default:
		return "message"
	}
}

// RecoveryMiddleware turns a handler panic into an error log. A pending
// callback is answered so the button does not keep spinning.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				event := log.Error().Interface("panic", r).Int("update_id", c.Update().ID)
				if sender := c.Sender(); sender != nil {
					event = event.Int64("user_id", sender.ID)
				}
				event.Msg("Handler panicked")

				err = nil
				if c.Callback() != nil {
					if rerr := c.Respond(); rerr != nil {
						log.Debug().Err(rerr).Msg("Failed to answer callback after panic")
					}
				}
			}()
			return next(c)
		}
	}
}
