package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/havtorin/moviebot/internal/calibration"
	"github.com/havtorin/moviebot/internal/database"
	"github.com/havtorin/moviebot/pkg/models"
)

// handleUpdate routes one incoming Telegram update.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		if update.Message.IsCommand() {
			b.handleCommand(ctx, update.Message)
		} else if update.Message.Text != "" {
			b.handleTitleList(ctx, update.Message)
		}
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "help":
		b.handleHelp(message)
	case "like":
		b.handleLike(message)
	case "genres":
		b.handleGenres(ctx, message)
	case "done":
		b.handleGenresDone(ctx, message)
	case "recommend":
		b.handleRecommend(ctx, message)
	case "following", "unfollow":
		b.handleFollowing(ctx, message)
	default:
		b.reply(message.Chat.ID, "Неизвестная команда. Используй /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	if _, err := b.users.GetOrCreateByChatID(ctx, message.Chat.ID); err != nil {
		b.log.Error().Err(err).Msg("failed to create user")
		return
	}

	text := "Привет! Я подбираю фильмы и сериалы под твой вкус " +
		"и слежу за новыми сериями твоих любимых сериалов.\n\n" +
		"1️⃣ Отправь мне список любимых фильмов/сериалов через запятую — можно с опечатками и русскими названиями.\n" +
		"2️⃣ Отметь любимые жанры и пройди короткую калибровку.\n" +
		"3️⃣ По команде /recommend получай подборку.\n\n" +
		"За сериалами из списка я слежу и сообщу, когда выйдет что-то новое."
	b.reply(message.Chat.ID, text)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	text := "📖 Команды:\n" +
		"/like - добавить любимые тайтлы\n" +
		"/genres - выбрать любимые жанры\n" +
		"/done - закончить выбор жанров\n" +
		"/recommend - получить рекомендации\n" +
		"/following - сериалы, за которыми я слежу"
	b.reply(message.Chat.ID, text)
}

func (b *Bot) handleLike(message *tgbotapi.Message) {
	text := "Отправь список своих любимых фильмов/сериалов через запятую.\n\n" +
		"Например:\nОстрые козырьки, Голяк, Йеллоустоун"
	b.reply(message.Chat.ID, text)
}

// handleTitleList resolves a comma-separated list of titles into favorites.
func (b *Bot) handleTitleList(ctx context.Context, message *tgbotapi.Message) {
	user, err := b.users.GetOrCreateByChatID(ctx, message.Chat.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to resolve user")
		return
	}

	var names []string
	for _, part := range strings.Split(message.Text, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		b.reply(message.Chat.ID, "Не смог распознать названия. Напиши их через запятую.")
		return
	}

	result, err := b.machine.AddFavorites(ctx, &user, names)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to add favorites")
		b.reply(message.Chat.ID, "Что-то пошло не так, попробуй ещё раз.")
		return
	}

	var lines []string
	if len(result.Added) > 0 {
		lines = append(lines, "Добавил в твои любимые:")
		for _, fav := range result.Added {
			label := "фильм"
			if fav.Kind == models.KindSeries {
				label = "сериал"
			}
			lines = append(lines, fmt.Sprintf("• %s (%s)", fav.Title, label))
		}
	}
	for _, name := range result.Unresolved {
		lines = append(lines, fmt.Sprintf("Не нашёл ничего подходящего для: %s", name))
	}
	if len(lines) > 0 {
		b.reply(message.Chat.ID, strings.Join(lines, "\n"))
	}

	switch result.State {
	case models.StateCollectingFavorites:
		b.reply(message.Chat.ID, "Добавь ещё любимых тайтлов — мне нужно минимум три, чтобы понять твой вкус.")
	case models.StateSelectingGenres:
		b.sendGenreKeyboard(message.Chat.ID)
	}
}

func (b *Bot) handleGenres(ctx context.Context, message *tgbotapi.Message) {
	user, err := b.users.GetOrCreateByChatID(ctx, message.Chat.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to resolve user")
		return
	}
	if user.State != models.StateSelectingGenres {
		b.reply(message.Chat.ID, "Выбор жанров сейчас недоступен. Сначала добавь любимые тайтлы через /like.")
		return
	}
	b.sendGenreKeyboard(message.Chat.ID)
}

func (b *Bot) sendGenreKeyboard(chatID int64) {
	var rows [][]MenuButton
	row := make([]MenuButton, 0, 3)
	for _, g := range genreChoices {
		row = append(row, MenuButton{
			Text:         g.Name,
			CallbackData: Action{Verb: VerbGenreToggle, TitleID: g.ID}.Encode(),
		})
		if len(row) == 3 {
			rows = append(rows, row)
			row = make([]MenuButton, 0, 3)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []MenuButton{{
		Text:         "✅ Готово",
		CallbackData: Action{Verb: VerbGenresDone}.Encode(),
	}})

	msg := tgbotapi.NewMessage(chatID, "Отметь любимые жанры (повторное нажатие убирает выбор), потом нажми «Готово»:")
	msg.ReplyMarkup = createKeyboard(rows)
	b.send(msg)
}

func (b *Bot) handleGenresDone(ctx context.Context, message *tgbotapi.Message) {
	user, err := b.users.GetOrCreateByChatID(ctx, message.Chat.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to resolve user")
		return
	}
	b.finishGenres(ctx, message.Chat.ID, &user)
}

func (b *Bot) finishGenres(ctx context.Context, chatID int64, user *models.User) {
	err := b.machine.FinishGenres(ctx, user)
	if errors.Is(err, calibration.ErrWrongState) {
		b.reply(chatID, "Сейчас нечего завершать. Начни с /like.")
		return
	}
	if err != nil {
		b.log.Error().Err(err).Msg("failed to finish genre selection")
		b.reply(chatID, "Что-то пошло не так, попробуй ещё раз.")
		return
	}

	b.reply(chatID, "Отлично! Теперь короткая калибровка: отмечай, что ты уже видел, а что тебе нравится.")
	b.sendCalibrationBatch(ctx, chatID, user)
}

// sendCalibrationBatch presents the next batch of calibration candidates,
// one message per title with the three response buttons.
func (b *Bot) sendCalibrationBatch(ctx context.Context, chatID int64, user *models.User) {
	if user.State == models.StateCalibrating {
		// Recovers a pool build interrupted mid-onboarding; a no-op otherwise.
		if err := b.machine.EnsurePool(ctx, user.ID); err != nil {
			b.log.Error().Err(err).Msg("failed to build calibration pool")
			return
		}
	}

	batch, done, err := b.machine.NextBatch(ctx, user)
	if errors.Is(err, calibration.ErrWrongState) {
		return
	}
	if err != nil {
		b.log.Error().Err(err).Msg("failed to fetch calibration batch")
		return
	}
	if done {
		b.reply(chatID, "🎉 Калибровка завершена! Жми /recommend за подборкой.")
		return
	}
	if len(batch) == 0 {
		b.reply(chatID, "Сначала ответь про тайтлы выше.")
		return
	}

	for _, cand := range batch {
		label := "🎬"
		if cand.Kind == models.KindSeries {
			label = "📺"
		}
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("%s %s — видел?", label, cand.Title))
		msg.ReplyMarkup = createKeyboard([][]MenuButton{{
			{Text: "Видел", CallbackData: Action{Verb: VerbCalWatched, TitleID: cand.TitleID, Kind: cand.Kind}.Encode()},
			{Text: "Не видел", CallbackData: Action{Verb: VerbCalUnseen, TitleID: cand.TitleID, Kind: cand.Kind}.Encode()},
			{Text: "❤️ Любимое", CallbackData: Action{Verb: VerbCalFavorite, TitleID: cand.TitleID, Kind: cand.Kind}.Encode()},
		}})
		b.send(msg)
	}
}

func (b *Bot) handleRecommend(ctx context.Context, message *tgbotapi.Message) {
	user, err := b.users.GetOrCreateByChatID(ctx, message.Chat.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to resolve user")
		return
	}

	count, err := b.favorites.CountByUser(ctx, user.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to count favorites")
		return
	}
	if count < b.cfg.MinFavorites {
		b.reply(message.Chat.ID,
			fmt.Sprintf("Пока мало данных о твоём вкусе. Добавь хотя бы %d любимых тайтла через /like.", b.cfg.MinFavorites))
		return
	}

	b.reply(message.Chat.ID, "Подбираю рекомендации...")

	recs, err := b.engine.Recommend(ctx, user.ID, b.cfg.RecommendLimit)
	if err != nil {
		b.log.Error().Err(err).Msg("recommendation failed")
		b.reply(message.Chat.ID, "Что-то пошло не так, попробуй ещё раз.")
		return
	}
	if len(recs) == 0 {
		b.reply(message.Chat.ID, "Пока не нашёл ничего подходящего. Попробуй добавить ещё любимых через /like.")
		return
	}

	for _, rec := range recs {
		label := "🎬"
		if rec.Kind == models.KindSeries {
			label = "📺"
		}
		text := fmt.Sprintf("%s %s (рейтинг: %.1f)", label, rec.Title, rec.Rating)
		if rec.Overview != "" {
			text += "\n" + truncateText(rec.Overview, 200)
		}

		rows := [][]MenuButton{{
			{Text: "❤️ В любимые", CallbackData: Action{Verb: VerbRecFavorite, TitleID: rec.TitleID, Kind: rec.Kind}.Encode()},
			{Text: "Уже видел", CallbackData: Action{Verb: VerbRecSeen, TitleID: rec.TitleID, Kind: rec.Kind}.Encode()},
		}, {
			{Text: "🚫 Не предлагать", CallbackData: Action{Verb: VerbRecBlock, TitleID: rec.TitleID, Kind: rec.Kind}.Encode()},
		}}
		if rec.Kind == models.KindSeries {
			rows[1] = append(rows[1], MenuButton{
				Text:         "🔔 Следить",
				CallbackData: Action{Verb: VerbRecFollow, TitleID: rec.TitleID, Kind: rec.Kind}.Encode(),
			})
		}

		msg := tgbotapi.NewMessage(message.Chat.ID, text)
		msg.ReplyMarkup = createKeyboard(rows)
		b.send(msg)
	}
}

func (b *Bot) handleFollowing(ctx context.Context, message *tgbotapi.Message) {
	user, err := b.users.GetOrCreateByChatID(ctx, message.Chat.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to resolve user")
		return
	}

	subs, err := b.subs.ListByUser(ctx, user.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to list subscriptions")
		return
	}
	if len(subs) == 0 {
		b.reply(message.Chat.ID, "Я пока не слежу ни за одним сериалом. Добавь любимые сериалы через /like.")
		return
	}

	var rows [][]MenuButton
	for _, sub := range subs {
		rows = append(rows, []MenuButton{{
			Text:         "🔕 " + sub.Title,
			CallbackData: Action{Verb: VerbUnfollow, TitleID: sub.TitleID, Kind: models.KindSeries}.Encode(),
		}})
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, "Слежу за новыми сериями этих сериалов (нажми, чтобы отписаться):")
	msg.ReplyMarkup = createKeyboard(rows)
	b.send(msg)
}

// handleCallback validates and routes a button press.
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	action, err := ParseAction(cq.Data)
	if err != nil {
		b.log.Warn().Err(err).Str("data", cq.Data).Msg("rejected callback payload")
		b.answerCallback(cq.ID, "")
		return
	}
	if cq.Message == nil {
		b.answerCallback(cq.ID, "")
		return
	}

	user, err := b.users.GetOrCreateByChatID(ctx, cq.Message.Chat.ID)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to resolve user")
		b.answerCallback(cq.ID, "")
		return
	}

	switch action.Verb {
	case VerbGenreToggle:
		b.handleGenreToggle(ctx, cq, &user, action)
	case VerbGenresDone:
		b.answerCallback(cq.ID, "")
		b.finishGenres(ctx, cq.Message.Chat.ID, &user)
	case VerbCalWatched, VerbCalUnseen, VerbCalFavorite:
		b.handleCalibrationResponse(ctx, cq, &user, action)
	case VerbRecFavorite, VerbRecSeen, VerbRecBlock, VerbRecFollow:
		b.handleRecommendationAction(ctx, cq, &user, action)
	case VerbUnfollow:
		if err := b.subs.Delete(ctx, user.ID, action.TitleID); err != nil {
			b.log.Error().Err(err).Msg("failed to unfollow")
			b.answerCallback(cq.ID, "Не получилось, попробуй ещё раз")
			return
		}
		b.answerCallback(cq.ID, "Больше не слежу за этим сериалом")
	}
}

func (b *Bot) handleGenreToggle(ctx context.Context, cq *tgbotapi.CallbackQuery, user *models.User, action Action) {
	on, err := b.machine.ToggleGenre(ctx, user, action.TitleID)
	if errors.Is(err, calibration.ErrWrongState) {
		b.answerCallback(cq.ID, "Выбор жанров уже закрыт")
		return
	}
	if err != nil {
		b.log.Error().Err(err).Msg("failed to toggle genre")
		b.answerCallback(cq.ID, "Не получилось, попробуй ещё раз")
		return
	}
	if on {
		b.answerCallback(cq.ID, "Жанр добавлен")
	} else {
		b.answerCallback(cq.ID, "Жанр убран")
	}
}

func (b *Bot) handleCalibrationResponse(ctx context.Context, cq *tgbotapi.CallbackQuery, user *models.User, action Action) {
	status, ok := action.status()
	if !ok {
		b.answerCallback(cq.ID, "")
		return
	}

	outcome, err := b.machine.Respond(ctx, user, action.TitleID, status)
	switch {
	case errors.Is(err, calibration.ErrAlreadyAnswered):
		b.answerCallback(cq.ID, "Уже учтено")
		return
	case errors.Is(err, calibration.ErrNotShown), errors.Is(err, database.ErrNotFound):
		b.answerCallback(cq.ID, "")
		return
	case err != nil:
		b.log.Error().Err(err).Msg("failed to record calibration response")
		b.answerCallback(cq.ID, "Не получилось, попробуй ещё раз")
		return
	}

	b.answerCallback(cq.ID, "Записал")
	switch {
	case outcome.Done:
		b.reply(cq.Message.Chat.ID, "🎉 Калибровка завершена! Жми /recommend за подборкой.")
	case outcome.BatchComplete:
		b.sendCalibrationBatch(ctx, cq.Message.Chat.ID, user)
	}
}

func (b *Bot) handleRecommendationAction(ctx context.Context, cq *tgbotapi.CallbackQuery, user *models.User, action Action) {
	switch action.Verb {
	case VerbRecFavorite:
		title := b.lookupTitle(ctx, action)
		if err := b.favorites.Add(ctx, models.FavoriteTitle{
			UserID: user.ID, TitleID: action.TitleID, Title: title, Kind: action.Kind,
		}); err != nil {
			b.log.Error().Err(err).Msg("failed to add favorite")
			b.answerCallback(cq.ID, "Не получилось, попробуй ещё раз")
			return
		}
		b.recordReaction(ctx, user.ID, action.TitleID, models.FeedbackFavorited)
		if action.Kind == models.KindSeries {
			b.follow(ctx, user.ID, action.TitleID, title)
		}
		b.answerCallback(cq.ID, "Добавил в любимые")

	case VerbRecSeen:
		b.recordReaction(ctx, user.ID, action.TitleID, models.FeedbackWatched)
		b.answerCallback(cq.ID, "Понял, уже видел")

	case VerbRecBlock:
		b.recordReaction(ctx, user.ID, action.TitleID, models.FeedbackBlocked)
		b.answerCallback(cq.ID, "Больше не предложу")

	case VerbRecFollow:
		b.follow(ctx, user.ID, action.TitleID, b.lookupTitle(ctx, action))
		b.recordReaction(ctx, user.ID, action.TitleID, models.FeedbackEngaged)
		b.answerCallback(cq.ID, "Слежу за новыми сериями")
	}
}

// recordReaction appends a feedback event and stamps the latest exposure
// action so the exposure penalty stops where the user reacted.
func (b *Bot) recordReaction(ctx context.Context, userID, titleID int64, kind models.FeedbackKind) {
	if err := b.feedback.Append(ctx, userID, titleID, kind); err != nil {
		b.log.Error().Err(err).Msg("failed to record feedback")
	}
	if err := b.exposures.SetLastAction(ctx, userID, titleID, kind); err != nil {
		b.log.Error().Err(err).Msg("failed to stamp exposure action")
	}
}

// follow subscribes to a series, seeding the marker from the catalog so the
// first watcher pass stays silent.
func (b *Bot) follow(ctx context.Context, userID, titleID int64, title string) {
	marker, err := b.gateway.LatestMarker(ctx, titleID)
	if err != nil {
		b.log.Warn().Err(err).Int64("title_id", titleID).Msg("failed to seed release marker")
		marker = ""
	}
	if err := b.subs.Upsert(ctx, models.Subscription{
		UserID: userID, TitleID: titleID, Title: title, LastMarker: marker,
	}); err != nil {
		b.log.Error().Err(err).Msg("failed to follow series")
	}
}

// lookupTitle fetches the display title for a callback that only carries
// the title ID; failures degrade to an empty title rather than blocking the
// action.
func (b *Bot) lookupTitle(ctx context.Context, action Action) string {
	details, err := b.gateway.GetDetails(ctx, action.TitleID, action.Kind)
	if err != nil {
		b.log.Warn().Err(err).Int64("title_id", action.TitleID).Msg("failed to look up title")
		return ""
	}
	return details.Title
}

// truncateText caps a message body at limit runes. Overviews come in
// ru-RU, so a byte-offset cut would split a multibyte character.
func truncateText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
