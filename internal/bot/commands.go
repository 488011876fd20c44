package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"lms/internal/models"
)

// handleStart shows welcome message and available commands
func (b *Bot) handleStart(message *tgbotapi.Message) {
	text := `Welcome to the Library Bot! 📚

Available commands:
/books - Show the catalog
/new_book - Register a new book
/borrow - Lend a copy to a member
/return - Return a borrowed copy
/loans - Show active loans
/overdue - Show overdue loans
/stats - View library statistics`

	b.sendText(message.Chat.ID, text)
}

func (b *Bot) handleBooks(ctx context.Context, message *tgbotapi.Message) {
	books, err := b.lib.ListBooks(ctx)
	if err != nil {
		b.sendText(message.Chat.ID, errorText(err))
		return
	}
	b.sendText(message.Chat.ID, formatBooks(books))
}

// handleNewBookStart initiates the new book conversation
func (b *Bot) handleNewBookStart(message *tgbotapi.Message) {
	b.setState(message.From.ID, &ConversationState{
		Command: cmdNewBook,
		Step:    1,
		Data:    make(map[string]interface{}),
	})

	b.sendText(message.Chat.ID, "Please enter the book title:")
}

// handleBorrowStart shows the books that still have a copy on the shelf.
func (b *Bot) handleBorrowStart(ctx context.Context, message *tgbotapi.Message) {
	books, err := b.lib.ListBooks(ctx)
	if err != nil {
		b.sendText(message.Chat.ID, errorText(err))
		return
	}

	var available []models.Book
	for _, book := range books {
		if book.AvailableCopies > 0 {
			available = append(available, book)
		}
	}
	if len(available) == 0 {
		b.sendText(message.Chat.ID, "No copies are available right now.")
		return
	}

	b.setState(message.From.ID, &ConversationState{
		Command: cmdBorrow,
		Step:    1,
		Data:    make(map[string]interface{}),
	})

	b.sendWithKeyboard(message.Chat.ID, "📚 Select a book:", keyboard(bookButtons(available), 2))
}

func (b *Bot) handleReturnStart(ctx context.Context, message *tgbotapi.Message) {
	loans, err := b.lib.ListActiveLoans(ctx)
	if err != nil {
		b.sendText(message.Chat.ID, errorText(err))
		return
	}
	if len(loans) == 0 {
		b.sendText(message.Chat.ID, "There are no active loans.")
		return
	}

	books, members, err := b.lookups(ctx)
	if err != nil {
		b.sendText(message.Chat.ID, errorText(err))
		return
	}

	b.setState(message.From.ID, &ConversationState{
		Command: cmdReturn,
		Step:    1,
		Data:    make(map[string]interface{}),
	})

	b.sendWithKeyboard(message.Chat.ID, "🔖 Select the loan to return:", keyboard(loanButtons(loans, books, members), 1))
}

func (b *Bot) handleLoans(ctx context.Context, message *tgbotapi.Message) {
	loans, err := b.lib.ListActiveLoans(ctx)
	if err != nil {
		b.sendText(message.Chat.ID, errorText(err))
		return
	}
	if len(loans) == 0 {
		b.sendText(message.Chat.ID, "There are no active loans.")
		return
	}
	b.sendLoanList(ctx, message.Chat.ID, "🔖 Active loans:", loans)
}

func (b *Bot) handleOverdue(ctx context.Context, message *tgbotapi.Message) {
	loans, err := b.lib.ListOverdueLoans(ctx)
	if err != nil {
		b.sendText(message.Chat.ID, errorText(err))
		return
	}
	if len(loans) == 0 {
		b.sendText(message.Chat.ID, "✅ Nothing is overdue.")
		return
	}
	b.sendLoanList(ctx, message.Chat.ID, "⚠️ Overdue loans:", loans)
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) {
	stats, err := b.lib.Stats(ctx)
	if err != nil {
		b.logger.Error("Failed to compute stats", zap.Error(err))
		b.sendText(message.Chat.ID, errorText(err))
		return
	}
	b.sendText(message.Chat.ID, formatStats(stats))
}

func (b *Bot) sendLoanList(ctx context.Context, chatID int64, title string, loans []models.LoanRecord) {
	books, members, err := b.lookups(ctx)
	if err != nil {
		b.sendText(chatID, errorText(err))
		return
	}
	b.sendText(chatID, formatLoans(title, loans, books, members, b.lib.Now()))
}

// lookups indexes books and members by id for rendering loans.
func (b *Bot) lookups(ctx context.Context) (map[string]models.Book, map[string]models.Member, error) {
	bookList, err := b.lib.ListBooks(ctx)
	if err != nil {
		return nil, nil, err
	}
	memberList, err := b.lib.ListMembers(ctx)
	if err != nil {
		return nil, nil, err
	}

	books := make(map[string]models.Book, len(bookList))
	for _, book := range bookList {
		books[book.ID] = book
	}
	members := make(map[string]models.Member, len(memberList))
	for _, m := range memberList {
		members[m.ID] = m
	}
	return books, members, nil
}
