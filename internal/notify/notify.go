package notify

import (
	"fmt"
	"strings"

	"insightai-sync/internal/types"
	"insightai-sync/lib/helpers"
	"insightai-sync/lib/translation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Notifier delivers a user-facing notification. Delivery failure is never
// fatal: a fired alert stays fired whether or not its notification lands.
type Notifier interface {
	Notify(title, body string) error
}

// AlertMessage renders the notification for one fired alert.
func AlertMessage(a types.Alert, observedPrice float64) (title, body string) {
	title = translation.Translate("Market Alert")
	body = fmt.Sprintf(
		translation.Translate("%s crossed $%s (current: $%s)"),
		strings.ToUpper(a.Symbol),
		helpers.FormatPriceUS(a.TargetPrice, false),
		helpers.FormatPriceUS(observedPrice, false),
	)
	return title, body
}

// Log writes notifications to the application log. Used when no external
// channel is configured, mirroring the dashboard's in-app indicator being
// the source of truth.
type Log struct{}

func (Log) Notify(title, body string) error {
	log.Infof("%s: %s", title, body)
	return nil
}

// Telegram sends notifications to a fixed chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Notify(title, body string) error {
	text := fmt.Sprintf("🚨 *%s*\n\n%s",
		helpers.EscapeMarkdownV2(title),
		helpers.EscapeMarkdownV2(body),
	)

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	msg.ParseMode = "MarkdownV2"
	_, err := t.bot.Send(msg)
	return errors.Wrap(err, "could not send notification")
}
