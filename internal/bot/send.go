package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	liberrors "lms/internal/errors"
)

func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if b.out == nil {
		return
	}
	if _, err := b.out.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Error(err))
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	b.sendMessage(msg)
}

// answerCallback removes the loading state of a pressed button.
func (b *Bot) answerCallback(queryID string) {
	if b.out == nil {
		return
	}
	if _, err := b.out.Request(tgbotapi.NewCallback(queryID, "")); err != nil {
		b.logger.Warn("Failed to answer callback query", zap.Error(err))
	}
}

// errorText turns a library error into a chat reply.
func errorText(err error) string {
	var domainErr *liberrors.Error
	if !liberrors.As(err, &domainErr) {
		return fmt.Sprintf("Error: %v", err)
	}

	switch domainErr.Code {
	case liberrors.CodeOutOfStock:
		return "❌ " + domainErr.Message + ". Try again after someone returns a copy."
	case liberrors.CodePersistence:
		return "⚠️ Could not save the change, please try again."
	default:
		return "❌ " + domainErr.Message
	}
}
