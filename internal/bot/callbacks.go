package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Callback data prefixes. Ids are appended verbatim and stay under
// Telegram's 64 byte limit.
const (
	prefixBorrowBook   = "borrow_book:"
	prefixBorrowMember = "borrow_member:"
	prefixReturn       = "return:"
)

// handleBorrowBookCallback stores the chosen book and asks for the member.
func (b *Bot) handleBorrowBookCallback(ctx context.Context, query *tgbotapi.CallbackQuery, state *ConversationState) {
	if state.Command != cmdBorrow || state.Step != 1 {
		return
	}
	chatID := query.Message.Chat.ID
	bookID := strings.TrimPrefix(query.Data, prefixBorrowBook)

	book, err := b.lib.GetBook(ctx, bookID)
	if err != nil {
		b.sendText(chatID, errorText(err))
		state.Step = stepDone
		return
	}

	members, err := b.lib.ListMembers(ctx)
	if err != nil {
		b.logger.Error("Failed to list members in borrow callback",
			zap.Error(err),
			zap.Int64("user_id", query.From.ID),
		)
		b.sendText(chatID, errorText(err))
		state.Step = stepDone
		return
	}
	if len(members) == 0 {
		b.sendText(chatID, "No members are registered.")
		state.Step = stepDone
		return
	}

	state.Data["book_id"] = book.ID
	state.Step = 2

	b.sendWithKeyboard(chatID, fmt.Sprintf("👤 Who is borrowing %q?", book.Title), keyboard(memberButtons(members), 2))
}

// handleBorrowMemberCallback records the loan.
func (b *Bot) handleBorrowMemberCallback(ctx context.Context, query *tgbotapi.CallbackQuery, state *ConversationState) {
	if state.Command != cmdBorrow || state.Step != 2 {
		return
	}
	chatID := query.Message.Chat.ID
	memberID := strings.TrimPrefix(query.Data, prefixBorrowMember)
	bookID, _ := state.Data["book_id"].(string)

	state.Step = stepDone

	loan, err := b.lib.Borrow(ctx, bookID, memberID)
	if err != nil {
		b.logger.Info("Borrow rejected",
			zap.Error(err),
			zap.String("book_id", bookID),
			zap.String("member_id", memberID),
		)
		b.sendText(chatID, errorText(err))
		return
	}

	title := bookID
	if book, err := b.lib.GetBook(ctx, bookID); err == nil {
		title = book.Title
	}
	name := memberID
	if member, err := b.lib.GetMember(ctx, memberID); err == nil {
		name = member.Name
	}

	b.sendText(chatID, fmt.Sprintf("✅ Loan recorded!\n\n📚 Book: %s\n👤 Member: %s\n📅 Due: %s",
		title, name, loan.DueAt.Format(dateLayout)))
}

func (b *Bot) handleReturnCallback(ctx context.Context, query *tgbotapi.CallbackQuery, state *ConversationState) {
	if state.Command != cmdReturn {
		return
	}
	chatID := query.Message.Chat.ID
	loanID := strings.TrimPrefix(query.Data, prefixReturn)

	state.Step = stepDone

	if err := b.lib.ReturnLoan(ctx, loanID); err != nil {
		b.sendText(chatID, errorText(err))
		return
	}

	loan, err := b.lib.GetLoan(ctx, loanID)
	if err != nil {
		b.sendText(chatID, errorText(err))
		return
	}

	title := loan.BookID
	if book, err := b.lib.GetBook(ctx, loan.BookID); err == nil {
		title = book.Title
	}
	b.sendText(chatID, fmt.Sprintf("✅ Returned: %s", title))
}
