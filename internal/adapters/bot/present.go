package bot

import (
	"errors"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"peaks-bot/internal/adapters/telegram"
	"peaks-bot/internal/infra/metrics"
)

// BotClient: часть tgbotapi.BotAPI, которой пользуется бот.
type BotClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var _ BotClient = (*tgbotapi.BotAPI)(nil)

var errCaptionTooLong = errors.New("подпись длиннее лимита")

// Presenter: единая точка вывода: редактирует сообщение на месте, а если не вышло, отправляет новое.
type Presenter struct {
	bot BotClient
	log zerolog.Logger
}

// NewPresenter создаёт презентер.
func NewPresenter(bot BotClient, log zerolog.Logger) *Presenter {
	return &Presenter{bot: bot, log: log}
}

// Markup переводит раскладку в клавиатуру Telegram.
func (p Payload) Markup() *tgbotapi.InlineKeyboardMarkup {
	if len(p.Rows) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(p.Rows))
	for _, r := range p.Rows {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			if b.URL != "" {
				row = append(row, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, row)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// Present показывает payload. При messageID != 0 пытается отредактировать сообщение.
// Ошибки не возвращает: сбои логируются и попадают в метрики.
func (pr *Presenter) Present(chatID int64, messageID int, payload Payload) {
	if messageID != 0 {
		if pr.edit(chatID, messageID, payload) {
			return
		}
		metrics.RenderFallbacks.Inc()
	}
	pr.Send(chatID, payload)
}

func (pr *Presenter) edit(chatID int64, messageID int, payload Payload) bool {
	if len([]rune(payload.Text)) > 4096 {
		return false
	}
	var edit tgbotapi.EditMessageTextConfig
	if markup := payload.Markup(); markup != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, payload.Text, *markup)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, payload.Text)
	}
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true

	start := time.Now()
	_, err := pr.bot.Request(edit)
	metrics.ObserveNetworkRequest("telegram_bot", "edit_message", strconv.FormatInt(chatID, 10), start, err)
	if err == nil || isNotModified(err) {
		return true
	}
	pr.log.Debug().Err(err).Int64("chat_id", chatID).Int("message_id", messageID).Msg("не удалось отредактировать сообщение, отправляем новое")
	return false
}

// Send отправляет payload новым сообщением. Длинный текст режется на части, кнопки у последней.
func (pr *Presenter) Send(chatID int64, payload Payload) {
	parts := telegram.SplitMessage(payload.Text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if i == len(parts)-1 {
			if markup := payload.Markup(); markup != nil {
				msg.ReplyMarkup = markup
			}
		}
		start := time.Now()
		_, err := pr.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			pr.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось отправить сообщение")
			return
		}
	}
}

// SendPhoto отправляет фото с подписью. Ошибка возвращается, чтобы вызывающий мог показать текстовую версию.
func (pr *Presenter) SendPhoto(chatID int64, file tgbotapi.RequestFileData, caption string, payload Payload) error {
	if !telegram.FitsCaption(caption) {
		return errCaptionTooLong
	}
	photo := tgbotapi.NewPhoto(chatID, file)
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	if markup := payload.Markup(); markup != nil {
		photo.ReplyMarkup = markup
	}
	start := time.Now()
	_, err := pr.bot.Send(photo)
	metrics.ObserveNetworkRequest("telegram_bot", "send_photo", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		pr.log.Warn().Err(err).Int64("chat_id", chatID).Msg("не удалось отправить фото")
	}
	return err
}

// AnswerCallback убирает «часики» на кнопке.
func (pr *Presenter) AnswerCallback(callbackID, text string) {
	if callbackID == "" {
		return
	}
	start := time.Now()
	_, err := pr.bot.Request(tgbotapi.NewCallback(callbackID, text))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", "callback", start, err)
	if err != nil {
		pr.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
