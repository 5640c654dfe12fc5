package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"media_relay_bot/internal/pkg/login/usecase"
)

const helpText = "📖 Help\n\n" +
	"• /start — start the bot\n" +
	"• /login — connect your Telegram account\n" +
	"• /cancel_login — abort the login in progress\n" +
	"• /logout — disconnect your account\n" +
	"• /myinfo — check your account\n" +
	"• /help — show this menu\n\n" +
	"Send a t.me message link to relay its media here."

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	switch msg.Command() {
	case "start":
		if _, err := b.accounts.CreateUser(userID); err != nil {
			b.log.WithError(err).Error("create user failed")
		}
		b.reply(msg.Chat.ID,
			"Welcome! Send a t.me link to a message and I will relay its media to you.\n\n"+
				"For restricted chats, connect your account first with /login.")

	case "help":
		b.reply(msg.Chat.ID, helpText)

	case "login":
		err := b.login.BeginLogin(ctx, userID)
		switch {
		case err == nil:
			b.reply(msg.Chat.ID,
				"Please send your phone number in international format (e.g. +1234567890).\n\n"+
					"⏳ This session will expire in 5 minutes if no activity is detected.")
		case errors.Is(err, usecase.ErrAlreadyLoggedIn):
			b.reply(msg.Chat.ID, "You are already logged in! Use /logout to disconnect first.")
		case errors.Is(err, usecase.ErrAlreadyActive):
			b.reply(msg.Chat.ID, "A login is already in progress. Use /cancel_login to abort it first.")
		default:
			b.log.WithError(err).Error("begin login failed")
			b.reply(msg.Chat.ID, "Error. Please try /login again.")
		}

	case "cancel_login":
		if err := b.login.Cancel(ctx, userID); errors.Is(err, usecase.ErrNoActiveLogin) {
			b.reply(msg.Chat.ID, "No active login process to cancel.")
		} else {
			b.reply(msg.Chat.ID, "✅ Login process cancelled.")
		}

	case "logout":
		loggedIn, err := b.login.IsLoggedIn(userID)
		if err != nil {
			b.log.WithError(err).Error("logout failed")
			return
		}
		if !loggedIn && !b.login.Active(userID) {
			b.reply(msg.Chat.ID, "You are not logged in.")
			return
		}
		if err := b.login.Logout(ctx, userID); err != nil {
			b.log.WithError(err).Error("logout failed")
			b.reply(msg.Chat.ID, "Error. Please try /logout again.")
			return
		}
		b.reply(msg.Chat.ID, "✅ Logged out successfully! Your session has been cleared.")

	case "myinfo":
		loggedIn, err := b.login.IsLoggedIn(userID)
		if err != nil {
			b.log.WithError(err).Error("myinfo failed")
			return
		}
		status := "not connected"
		if loggedIn {
			status = "connected"
		}
		b.reply(msg.Chat.ID, fmt.Sprintf("🆔 %d\n🔑 Account: %s", userID, status))

	default:
		b.reply(msg.Chat.ID, "Unknown command 🤔 Use /help.")
	}
}
