package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"peaks-bot/internal/adapters/qrcode"
	"peaks-bot/internal/domain"
	"peaks-bot/internal/infra/metrics"
	"peaks-bot/internal/usecase/category"
	"peaks-bot/internal/usecase/interactions"
	"peaks-bot/internal/usecase/news"
	"peaks-bot/internal/usecase/posts"
)

// Recorder принимает записи журнала действий.
type Recorder interface {
	Record(profile domain.TelegramProfile, kind domain.InteractionType, ref string, postID *int64) bool
}

// Options: зависимости обработчика.
type Options struct {
	News        *news.Service
	Posts       *posts.Service
	Stats       *interactions.Stats
	Codec       *category.Codec
	States      domain.StateStore
	Recorder    Recorder
	Links       Links
	PageSize    int
	BotUsername string
	AdminIDs    []int64
}

// Handler обслуживает апдейты бота.
type Handler struct {
	out         *Presenter
	log         zerolog.Logger
	news        *news.Service
	posts       *posts.Service
	stats       *interactions.Stats
	codec       *category.Codec
	states      domain.StateStore
	recorder    Recorder
	links       Links
	pageSize    int
	botUsername string
	admins      map[int64]struct{}
}

var _ UpdateHandler = (*Handler)(nil)

// NewHandler создаёт обработчик.
func NewHandler(bot BotClient, log zerolog.Logger, opts Options) *Handler {
	admins := make(map[int64]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = struct{}{}
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 5
	}
	log = log.With().Str("component", "bot").Logger()
	return &Handler{
		out:         NewPresenter(bot, log),
		log:         log,
		news:        opts.News,
		posts:       opts.Posts,
		stats:       opts.Stats,
		codec:       opts.Codec,
		states:      opts.States,
		recorder:    opts.Recorder,
		links:       opts.Links,
		pageSize:    pageSize,
		botUsername: opts.BotUsername,
		admins:      admins,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil && upd.Message.Chat != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if msg.IsCommand() {
		h.handleCommand(ctx, msg)
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	state, err := h.states.Get(ctx, chatID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось прочитать состояние диалога")
		h.out.Send(chatID, RenderNotice(msgTryLater))
		return
	}
	if !state.Idle() {
		h.consumeKeyword(ctx, msg, state, text)
		return
	}
	if param, ok := qrcode.ExtractStartParam(text, h.botUsername); ok {
		h.handleStartParam(ctx, msg, param)
		return
	}
	h.out.Send(chatID, RenderNotice(msgFallback))
}

// handleCommand никогда не трактует команду как ключевое слово поиска.
// Ожидание ввода сбрасывает только /start без параметров.
func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		if args != "" {
			h.handleStartParam(ctx, msg, args)
			return
		}
		if err := h.states.Clear(ctx, chatID); err != nil {
			h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось сбросить состояние")
		}
		h.out.Send(chatID, RenderWelcome(h.links))
	case "help":
		h.out.Send(chatID, RenderHelp(h.links))
	case "news":
		h.showCategories(ctx, chatID, 0)
	case "qr":
		h.handleQR(ctx, msg, args)
	case "stats":
		h.handleStats(ctx, msg, args)
	case "addnews":
		h.handleAddNews(ctx, msg, args)
	case "addpost":
		h.handleAddPost(ctx, msg, args)
	default:
		h.out.Send(chatID, RenderNotice(msgUnknownCommand))
	}
}

func (h *Handler) consumeKeyword(ctx context.Context, msg *tgbotapi.Message, state domain.ConversationState, keyword string) {
	chatID := msg.Chat.ID
	awaiting := state.Awaiting
	state.Awaiting = domain.AwaitNone
	if err := h.states.Put(ctx, chatID, state); err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось сохранить состояние")
	}

	profile := profileOf(msg.From)
	switch awaiting {
	case domain.AwaitNewsKeyword:
		items, err := h.news.Search(ctx, keyword)
		if err != nil {
			h.log.Error().Err(err).Str("keyword", keyword).Msg("поиск новостей")
			h.out.Send(chatID, RenderSearchFailed(awaiting))
			return
		}
		h.record(profile, domain.InteractionNewsSearch, keyword, nil)
		h.out.Send(chatID, RenderNewsSearch(keyword, items))
	case domain.AwaitPostKeyword:
		found, err := h.posts.Search(ctx, keyword)
		if err != nil {
			h.log.Error().Err(err).Str("keyword", keyword).Msg("поиск карточек")
			h.out.Send(chatID, RenderSearchFailed(awaiting))
			return
		}
		h.record(profile, domain.InteractionSearch, keyword, nil)
		if len(found) == 1 {
			h.sendPostCard(chatID, found[0])
			return
		}
		h.out.Send(chatID, RenderPostSearch(keyword, found))
	}
}

func (h *Handler) handleStartParam(ctx context.Context, msg *tgbotapi.Message, param string) {
	chatID := msg.Chat.ID
	qrID, ok := qrcode.ParseStart(param)
	if !ok {
		h.out.Send(chatID, RenderNotice(msgUnknownStart))
		return
	}
	profile := profileOf(msg.From)
	post, err := h.posts.ByQRID(ctx, qrID)
	if errors.Is(err, domain.ErrNotFound) {
		h.record(profile, domain.InteractionQRScanNotFound, qrID, nil)
		h.out.Send(chatID, RenderNotice(msgQRNotFound))
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("qr_id", qrID).Msg("не удалось получить карточку")
		h.out.Send(chatID, RenderNotice(msgTryLater))
		return
	}
	postID := post.ID
	h.record(profile, domain.InteractionQRScan, qrID, &postID)
	h.out.Send(chatID, RenderQRWelcome(post, h.links))
	h.sendPostCard(chatID, post)
}

func (h *Handler) handleQR(ctx context.Context, msg *tgbotapi.Message, qrID string) {
	chatID := msg.Chat.ID
	if !h.isAdmin(msg.From) {
		h.out.Send(chatID, RenderNotice(msgNoRights))
		return
	}
	if qrID == "" {
		h.out.Send(chatID, RenderNotice(msgQRUsage))
		return
	}
	post, err := h.posts.ByQRID(ctx, qrID)
	if errors.Is(err, domain.ErrNotFound) {
		h.out.Send(chatID, RenderNotice(fmt.Sprintf("❌ Пост с ID '%s' не найден.", htmlEscape(qrID))))
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("qr_id", qrID).Msg("не удалось получить карточку")
		h.out.Send(chatID, RenderNotice(msgTryLater))
		return
	}
	link, err := qrcode.DeepLink(h.botUsername, post.QRID)
	if err == nil {
		var png []byte
		png, err = qrcode.PNG(link)
		if err == nil {
			file := tgbotapi.FileBytes{Name: "qr_" + post.QRID + ".png", Bytes: png}
			err = h.out.SendPhoto(chatID, file, RenderQRCaption(post, link), Payload{})
		}
	}
	if err != nil {
		h.log.Error().Err(err).Str("qr_id", qrID).Msg("ошибка генерации QR-кода")
		h.out.Send(chatID, RenderNotice("❌ Ошибка при генерации QR-кода."))
	}
}

func (h *Handler) handleStats(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	if !h.isAdmin(msg.From) {
		h.out.Send(chatID, RenderNotice(msgNoRights))
		return
	}
	if h.stats == nil {
		h.out.Send(chatID, RenderNotice("Статистика недоступна."))
		return
	}
	days := 7
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n <= 0 || n > 365 {
			h.out.Send(chatID, RenderNotice("Использование: /stats [дней]\nПример: /stats 30"))
			return
		}
		days = n
	}
	stats, err := h.stats.Since(ctx, days)
	if err != nil {
		h.log.Error().Err(err).Msg("статистика действий")
		h.out.Send(chatID, RenderNotice(msgTryLater))
		return
	}
	h.out.Send(chatID, RenderStats(days, stats))
}

// handleAddNews: /addnews <ссылка> <категория> [заголовок].
func (h *Handler) handleAddNews(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	if !h.isAdmin(msg.From) {
		h.out.Send(chatID, RenderNotice(msgNoRights))
		return
	}
	fields := strings.Fields(args)
	if len(fields) < 2 {
		h.out.Send(chatID, RenderNotice(msgAddNewsUsage))
		return
	}
	title := strings.Join(fields[2:], " ")
	id, err := h.news.Add(ctx, fields[0], fields[1], title)
	switch {
	case errors.Is(err, news.ErrInvalidNews):
		h.out.Send(chatID, RenderNotice(msgAddNewsUsage))
	case err != nil:
		h.log.Error().Err(err).Str("link", fields[0]).Msg("не удалось добавить новость")
		h.out.Send(chatID, RenderNotice("❌ Ошибка добавления новости."))
	default:
		h.log.Info().Int64("news_id", id).Str("category", fields[1]).Msg("новость добавлена")
		h.out.Send(chatID, RenderNotice("✅ Новость успешно добавлена!"))
	}
}

// handleAddPost: /addpost <qr_id> | <название> | [описание] | [ссылка на фото].
func (h *Handler) handleAddPost(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	if !h.isAdmin(msg.From) {
		h.out.Send(chatID, RenderNotice(msgNoRights))
		return
	}
	fields := strings.Split(args, "|")
	if len(fields) < 2 {
		h.out.Send(chatID, RenderNotice(msgAddPostUsage))
		return
	}
	for len(fields) < 4 {
		fields = append(fields, "")
	}
	post := domain.Post{
		QRID:        strings.TrimSpace(fields[0]),
		Title:       strings.TrimSpace(fields[1]),
		Description: strings.TrimSpace(fields[2]),
		ImageURL:    strings.TrimSpace(fields[3]),
		IsActive:    true,
	}
	_, err := h.posts.Add(ctx, post)
	switch {
	case errors.Is(err, posts.ErrInvalidPost):
		h.out.Send(chatID, RenderNotice(msgAddPostUsage))
		return
	case err != nil:
		h.log.Error().Err(err).Str("qr_id", post.QRID).Msg("не удалось сохранить карточку")
		h.out.Send(chatID, RenderNotice("❌ Ошибка сохранения карточки."))
		return
	}
	link, err := qrcode.DeepLink(h.botUsername, post.QRID)
	if err != nil {
		link = ""
	}
	h.out.Send(chatID, RenderNotice(fmt.Sprintf("✅ Карточка %s сохранена.\n%s", htmlEscape(post.QRID), htmlEscape(link))))
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	toast := ""
	defer func() { h.out.AnswerCallback(cb.ID, toast) }()

	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	c, err := ParseCallback(cb.Data, h.pageSize)
	if err != nil {
		metrics.IncCallback("malformed")
		h.log.Warn().Str("data", cb.Data).Int64("chat_id", chatID).Msg("неизвестный callback")
		toast = "Неизвестное действие."
		h.out.Present(chatID, messageID, RenderNotice("Это действие больше недоступно."))
		return
	}
	metrics.IncCallback(string(c.Action))
	profile := profileOf(cb.From)

	switch c.Action {
	case ActionMainMenu:
		if err := h.states.Clear(ctx, chatID); err != nil {
			h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось сбросить состояние")
		}
		h.out.Present(chatID, messageID, RenderMainMenu(h.links))
	case ActionShowNews, ActionCategories:
		h.showCategories(ctx, chatID, messageID)
	case ActionSearchNews:
		h.awaitKeyword(ctx, chatID, messageID, domain.AwaitNewsKeyword)
	case ActionSearchPosts:
		h.awaitKeyword(ctx, chatID, messageID, domain.AwaitPostKeyword)
	case ActionNewsCategory, ActionNewsNav:
		toast = h.showPage(ctx, chatID, messageID, profile, c)
	case ActionShowPost:
		post, err := h.posts.ByQRID(ctx, c.Ref)
		toast = h.openPost(chatID, messageID, profile, post, err)
	case ActionNextPost:
		post, err := h.posts.Next(ctx, c.PostID())
		toast = h.openPost(chatID, messageID, profile, post, err)
	}
}

func (h *Handler) awaitKeyword(ctx context.Context, chatID int64, messageID int, awaiting domain.AwaitState) {
	state, err := h.states.Get(ctx, chatID)
	if err == nil {
		state.Awaiting = awaiting
		err = h.states.Put(ctx, chatID, state)
	}
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось сохранить состояние")
		h.out.Present(chatID, messageID, RenderNotice(msgTryLater))
		return
	}
	h.out.Present(chatID, messageID, RenderSearchPrompt(awaiting))
}

func (h *Handler) showCategories(ctx context.Context, chatID int64, messageID int) {
	cats, err := h.news.Categories(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось получить категории")
		h.out.Present(chatID, messageID, RenderNotice(msgTryLater))
		return
	}
	state, err := h.states.Get(ctx, chatID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось прочитать состояние диалога")
		h.out.Present(chatID, messageID, RenderNotice(msgTryLater))
		return
	}

	entries := make([]CategoryEntry, 0, len(cats))
	for _, c := range cats {
		token, err := h.codec.Assign(&state, c.Name)
		if err != nil {
			h.log.Error().Err(err).Str("category", c.Name).Msg("не удалось выдать токен категории")
			continue
		}
		entries = append(entries, CategoryEntry{Name: c.Name, Count: c.Count, Token: token})
	}
	if err := h.states.Put(ctx, chatID, state); err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось сохранить состояние")
		h.out.Present(chatID, messageID, RenderNotice(msgTryLater))
		return
	}
	h.out.Present(chatID, messageID, RenderCategories(entries))
}

// showPage возвращает текст всплывающего уведомления для callback.
func (h *Handler) showPage(ctx context.Context, chatID int64, messageID int, profile domain.TelegramProfile, c Callback) string {
	state, err := h.states.Get(ctx, chatID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось прочитать состояние диалога")
		h.out.Present(chatID, messageID, RenderNotice(msgTryLater))
		return ""
	}
	name, err := h.codec.Resolve(state, c.Token)
	if err != nil {
		h.log.Info().Str("token", c.Token).Int64("chat_id", chatID).Msg("токен категории не найден")
		h.out.Present(chatID, messageID, RenderCategoryNotFound())
		return "Категория не найдена."
	}

	page, err := h.news.FetchPage(ctx, name, c.Offset, h.pageSize)
	switch {
	case errors.Is(err, news.ErrInvalidPage):
		h.out.Present(chatID, messageID, RenderCategoryNotFound())
		return "Страница не найдена."
	case err != nil:
		h.log.Error().Err(err).Str("category", name).Int("offset", c.Offset).Msg("не удалось получить страницу")
		h.out.Present(chatID, messageID, RenderNotice(msgTryLater))
		return ""
	}

	kind := domain.InteractionNewsPage
	if c.Action == ActionNewsCategory {
		kind = domain.InteractionNewsCategory
	}
	h.record(profile, kind, name, nil)
	h.out.Present(chatID, messageID, RenderPage(name, c.Token, page))
	return ""
}

func (h *Handler) openPost(chatID int64, messageID int, profile domain.TelegramProfile, post domain.Post, err error) string {
	if errors.Is(err, domain.ErrNotFound) {
		h.out.Present(chatID, messageID, RenderNotice(msgPostNotFound))
		return "Пост не найден."
	}
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось получить карточку")
		h.out.Present(chatID, messageID, RenderNotice(msgTryLater))
		return ""
	}
	postID := post.ID
	h.record(profile, domain.InteractionPostView, post.QRID, &postID)
	h.sendPostCard(chatID, post)
	return ""
}

// sendPostCard отправляет карточку с фото, а при ошибке отправки фото текстом.
func (h *Handler) sendPostCard(chatID int64, post domain.Post) {
	card := RenderPostCard(post, h.links)
	if post.ImageURL != "" {
		if err := h.out.SendPhoto(chatID, tgbotapi.FileURL(post.ImageURL), card.Text, card); err == nil {
			return
		}
	}
	h.out.Send(chatID, RenderPostCardText(post, h.links))
}

func (h *Handler) record(profile domain.TelegramProfile, kind domain.InteractionType, ref string, postID *int64) {
	if h.recorder == nil || profile.TGUserID == 0 {
		return
	}
	h.recorder.Record(profile, kind, ref, postID)
}

func (h *Handler) isAdmin(u *tgbotapi.User) bool {
	if u == nil {
		return false
	}
	_, ok := h.admins[u.ID]
	return ok
}

func profileOf(u *tgbotapi.User) domain.TelegramProfile {
	if u == nil {
		return domain.TelegramProfile{}
	}
	return domain.TelegramProfile{TGUserID: u.ID, Username: u.UserName, FirstName: u.FirstName, LastName: u.LastName}
}
