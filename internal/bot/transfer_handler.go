package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"media_relay_bot/internal/pkg/login/domain"
	"media_relay_bot/internal/pkg/login/usecase"
	"media_relay_bot/internal/pkg/telegram"
	"media_relay_bot/internal/pkg/transfer"
)

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	// Пока идёт логин, любой текст — это очередной шаг диалога.
	if b.login.Active(msg.From.ID) {
		b.handleLoginStep(ctx, msg)
		return
	}

	chatRef, msgID, ok := ParseLink(msg.Text)
	if !ok {
		return
	}
	b.runTransfer(ctx, msg, chatRef, msgID)
}

func (b *Bot) handleLoginStep(ctx context.Context, msg *tgbotapi.Message) {
	phase, err := b.login.Submit(ctx, msg.From.ID, msg.Text)

	switch {
	case err == nil:
		switch phase {
		case domain.PhaseCode:
			b.reply(msg.Chat.ID, "OTP code sent to your Telegram account. Send it here (e.g. `1 2 3 4 5`).")
		case domain.PhasePassword:
			b.reply(msg.Chat.ID, "Two-Step Verification enabled. Send your cloud password.")
		case domain.PhaseComplete:
			b.reply(msg.Chat.ID, "✅ Login successful!")
		}
	case errors.Is(err, telegram.ErrCodeInvalid):
		b.reply(msg.Chat.ID, "Invalid code. Try again.")
	case errors.Is(err, usecase.ErrInvalidInput):
		b.reply(msg.Chat.ID, "That does not look like a code. Send the digits only.")
	case errors.Is(err, usecase.ErrNoActiveLogin):
		b.reply(msg.Chat.ID, "No active login. Use /login to start.")
	default:
		b.log.WithField("user", msg.From.ID).WithError(err).Warn("login step failed")
		b.reply(msg.Chat.ID, "Login failed. Use /login to try again.")
	}
}

func (b *Bot) runTransfer(ctx context.Context, msg *tgbotapi.Message, chatRef string, msgID int) {
	status := b.reply(msg.Chat.ID, "⏳ Processing...")
	if status == nil {
		return
	}

	sink := newStatusSink(b.Api, msg.Chat.ID, status.MessageID)
	err := b.transfers.Relay(ctx, msg.From.ID, chatRef, msgID, fmt.Sprint(msg.Chat.ID), sink)

	// Ровно одно итоговое сообщение на любой исход.
	switch {
	case err == nil:
		b.edit(msg.Chat.ID, status.MessageID, "✅ Transfer complete!")
		b.deleteLater(msg.Chat.ID, status.MessageID, 10*time.Second)
	case errors.Is(err, transfer.ErrNotLoggedIn):
		b.edit(msg.Chat.ID, status.MessageID, "❌ Please /login first to access this content.")
	case errors.Is(err, transfer.ErrNoMedia):
		b.edit(msg.Chat.ID, status.MessageID, "❌ This message does not contain media.")
	default:
		b.log.WithField("user", msg.From.ID).WithError(err).Error("transfer failed")
		b.edit(msg.Chat.ID, status.MessageID, "❌ Transfer failed. Try again later.")
	}
}

func (b *Bot) deleteLater(chatID int64, messageID int, after time.Duration) {
	time.AfterFunc(after, func() {
		b.Api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	})
}
