package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/havtorin/moviebot/internal/calibration"
	"github.com/havtorin/moviebot/internal/database"
	"github.com/havtorin/moviebot/internal/recommend"
	"github.com/havtorin/moviebot/internal/tmdb"
	"github.com/havtorin/moviebot/pkg/models"
)

// MenuButton represents a button in an inline keyboard
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// catalog is the slice of the title catalog the bot surface needs: display
// details for callbacks that only carry an ID, and the release marker that
// seeds a new subscription.
type catalog interface {
	GetDetails(ctx context.Context, id int64, kind models.TitleKind) (tmdb.Details, error)
	LatestMarker(ctx context.Context, titleID int64) (string, error)
}

// Bot represents the Telegram bot application. All collaborators are
// injected; the bot owns no business logic beyond rendering and routing
// user actions into the core.
type Bot struct {
	api     *tgbotapi.BotAPI
	cfg     *BotConfig
	log     zerolog.Logger
	machine *calibration.Machine
	engine  *recommend.Engine
	gateway catalog

	users     *database.UserRepository
	favorites *database.FavoriteRepository
	feedback  *database.FeedbackRepository
	subs      *database.SubscriptionRepository
	exposures *database.ExposureRepository
}

// New creates a new bot instance
func New(token string, cfg *BotConfig, machine *calibration.Machine, engine *recommend.Engine,
	gateway catalog, users *database.UserRepository, favorites *database.FavoriteRepository,
	feedback *database.FeedbackRepository, subs *database.SubscriptionRepository,
	exposures *database.ExposureRepository, logger zerolog.Logger) (*Bot, error) {

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &Bot{
		api:       api,
		cfg:       cfg,
		log:       logger.With().Str("component", "bot").Logger(),
		machine:   machine,
		engine:    engine,
		gateway:   gateway,
		users:     users,
		favorites: favorites,
		feedback:  feedback,
		subs:      subs,
		exposures: exposures,
	}, nil
}

// Start consumes Telegram updates until the context is canceled.
func (b *Bot) Start(ctx context.Context) error {
	b.log.Info().Str("account", b.api.Self.UserName).Msg("authorized")

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.cfg.UpdateTimeout
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// Stop gracefully stops the bot
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
	b.log.Info().Msg("bot stopped")
}

// NotifyNewRelease implements the watcher's Notifier: one message per
// distinct release-marker change of a followed series.
func (b *Bot) NotifyNewRelease(n models.Notification) error {
	text := fmt.Sprintf("📺 Вышло что-то новое по сериалу «%s»!\nПоследняя дата выхода эпизода: %s.", n.Title, n.Marker)
	msg := tgbotapi.NewMessage(n.ChatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send notification %s: %w", n.ID, err)
	}
	return nil
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Msg("failed to send message")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error().Err(err).Msg("failed to answer callback")
	}
}
