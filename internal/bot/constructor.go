package bot

import (
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"lms/internal/library"
)

// NewBot creates a new Telegram bot
func NewBot(token string, lib *library.Library, allowedUserIDs []int64, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	b := newBot(lib, allowedUserIDs, logger)
	b.api = api
	b.out = api
	return b, nil
}

func newBot(lib *library.Library, allowedUserIDs []int64, logger *zap.Logger) *Bot {
	allowedUsers := make(map[int64]bool)
	for _, id := range allowedUserIDs {
		allowedUsers[id] = true
	}

	return &Bot{
		lib:          lib,
		allowedUsers: allowedUsers,
		states:       make(map[int64]*ConversationState),
		userLocks:    make(map[int64]*sync.Mutex),
		logger:       logger,
	}
}
