package bot

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func (b *Bot) getState(userID int64) (*ConversationState, bool) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	state, ok := b.states[userID]
	return state, ok
}

func (b *Bot) setState(userID int64, state *ConversationState) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	b.states[userID] = state
}

// lockUser serializes updates from one user, so a conversation state is
// only touched by one handler at a time.
func (b *Bot) lockUser(userID int64) func() {
	b.statesMu.Lock()
	mu, ok := b.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		b.userLocks[userID] = mu
	}
	b.statesMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (b *Bot) clearState(userID int64) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	delete(b.states, userID)
}

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			b.sendText(message.Chat.ID, "An error occurred while processing your request. Please try again.")
		}
	}()

	userID := message.From.ID
	ctx := context.Background()

	if state, ok := b.getState(userID); ok {
		// If conversation is already complete, clean it up and process as new command
		if state.Step == stepDone {
			b.clearState(userID)
		} else if message.IsCommand() {
			// Any command cancels an ongoing conversation
			b.clearState(userID)
		} else {
			b.handleConversation(ctx, message, state)
			return
		}
	}

	if !message.IsCommand() {
		return
	}

	switch message.Command() {
	case "start", "help":
		b.handleStart(message)
	case "books":
		b.handleBooks(ctx, message)
	case cmdNewBook:
		b.handleNewBookStart(message)
	case cmdBorrow:
		b.handleBorrowStart(ctx, message)
	case cmdReturn:
		b.handleReturnStart(ctx, message)
	case "loans":
		b.handleLoans(ctx, message)
	case "overdue":
		b.handleOverdue(ctx, message)
	case "stats":
		b.handleStats(ctx, message)
	default:
		b.sendText(message.Chat.ID, "Unknown command. Use /start to see available commands.")
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	userID := query.From.ID
	ctx := context.Background()

	b.answerCallback(query.ID)

	if query.Message == nil {
		return
	}

	state, ok := b.getState(userID)
	if !ok {
		return
	}

	data := query.Data
	switch {
	case strings.HasPrefix(data, prefixBorrowBook):
		b.handleBorrowBookCallback(ctx, query, state)
	case strings.HasPrefix(data, prefixBorrowMember):
		b.handleBorrowMemberCallback(ctx, query, state)
	case strings.HasPrefix(data, prefixReturn):
		b.handleReturnCallback(ctx, query, state)
	}

	if state.Step == stepDone {
		b.clearState(userID)
	}
}
