package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"lms/internal/library"
)

// Bot represents the Telegram bot wrapper
type Bot struct {
	api          *tgbotapi.BotAPI
	out          sender
	lib          *library.Library
	allowedUsers map[int64]bool
	states       map[int64]*ConversationState
	userLocks    map[int64]*sync.Mutex
	statesMu     sync.Mutex
	logger       *zap.Logger
}

// sender is the part of the Telegram API used to reply.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// ConversationState tracks the state of multi-step commands
type ConversationState struct {
	Command string
	Step    int
	Data    map[string]interface{}
}

// Conversation commands.
const (
	cmdNewBook = "new_book"
	cmdBorrow  = "borrow"
	cmdReturn  = "return"
)

// stepDone marks a finished conversation.
const stepDone = -1
