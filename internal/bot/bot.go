package bot

import (
	"context"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"media_relay_bot/internal/pkg/account"
	"media_relay_bot/internal/pkg/login/usecase"
	"media_relay_bot/internal/pkg/transfer"
)

type Bot struct {
	Api       *tgbotapi.BotAPI
	login     *usecase.Manager
	transfers *transfer.Service
	accounts  account.Storage
	log       *logrus.Entry
}

func New(token string, accounts account.Storage) *Bot {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	return &Bot{
		Api:      api,
		accounts: accounts,
		log:      logrus.WithField("component", "bot"),
	}
}

func (b *Bot) SetLoginManager(m *usecase.Manager) {
	b.login = m
}

func (b *Bot) SetTransferService(s *transfer.Service) {
	b.transfers = s
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.Api.GetUpdatesChan(u)

	b.log.Infof("authorized on account %s", b.Api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.Api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg := update.Message
			if msg == nil || !msg.Chat.IsPrivate() || msg.From == nil {
				continue
			}
			if msg.IsCommand() {
				b.handleCommand(ctx, msg)
				continue
			}
			if msg.Text != "" {
				// Переносы долгие, не держим цикл обновлений.
				go b.handleText(ctx, msg)
			}
		}
	}
}

// Notify шлёт пользователю служебное сообщение. Best-effort:
// ошибка отправки глотается.
func (b *Bot) Notify(userID int64, text string) {
	if _, err := b.Api.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		b.log.WithField("user", userID).WithError(err).Debug("notify failed")
	}
}

func (b *Bot) reply(chatID int64, text string) *tgbotapi.Message {
	sent, err := b.Api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		b.log.WithError(err).Debug("reply failed")
		return nil
	}
	return &sent
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	if _, err := b.Api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.log.WithError(err).Debug("edit failed")
	}
}
