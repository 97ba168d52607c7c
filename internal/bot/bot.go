// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-karma-bot/internal/config"
	"telegram-karma-bot/internal/handler"
	"telegram-karma-bot/internal/repository"
	"telegram-karma-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	// Handlers
	karmaHandler *handler.KarmaHandler
	groupHandler *handler.GroupHandler
	userHandler  *handler.UserHandler
	adminHandler *handler.AdminHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config          *config.Config
	Ledger          *repository.Ledger
	TransferService *service.TransferService
	RankingService  *service.RankingService
	AdminService    *service.AdminService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:     deps.Config.Bot.Token,
		Poller:    &tele.LongPoller{Timeout: deps.Config.Bot.PollTimeout},
		ParseMode: tele.ModeHTML,
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Handler returned an error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot: teleBot,
		cfg: deps.Config,
	}

	notify := handler.NewNotifier(deps.Ledger, teleBot)
	b.karmaHandler = handler.NewKarmaHandler(deps.TransferService, notify, teleBot)
	b.groupHandler = handler.NewGroupHandler(deps.RankingService, notify, teleBot)
	b.userHandler = handler.NewUserHandler(deps.RankingService)
	b.adminHandler = handler.NewAdminHandler(deps.AdminService, teleBot)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg, NewPrivateAccess()))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Private chat
	b.bot.Handle("/start", b.userHandler.HandleStats)
	b.bot.Handle("/stats", b.userHandler.HandleStats)

	// Group
	b.bot.Handle("/leaderboard", b.groupHandler.HandleLeaderboard)
	b.bot.Handle("/chart", b.groupHandler.HandleChart)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/reset", b.adminHandler.HandleReset)
	adminGroup.Handle("/resetall", b.adminHandler.HandleResetAll)
	adminGroup.Handle("/info", b.adminHandler.HandleInfo)

	// Reply grants and the fallback offer button
	b.bot.Handle(tele.OnText, b.karmaHandler.HandleText)
	b.bot.Handle(tele.OnCallback, b.karmaHandler.HandleCallback)
}

// Start starts the bot polling.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
