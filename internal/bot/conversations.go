package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleConversation processes multi-step conversations
func (b *Bot) handleConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	switch state.Command {
	case cmdNewBook:
		b.handleNewBookConversation(ctx, message, state)
	default:
		// Borrow and return advance through keyboard buttons only.
		b.sendText(message.Chat.ID, "Please use the buttons above, or send another command to cancel.")
	}

	if state.Step == stepDone {
		b.clearState(message.From.ID)
	}
}

// handleNewBookConversation asks for title, author, ISBN and number of copies.
func (b *Bot) handleNewBookConversation(ctx context.Context, message *tgbotapi.Message, state *ConversationState) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch state.Step {
	case 1: // Waiting for title
		if text == "" {
			b.sendText(chatID, "The title cannot be empty. Please enter the book title:")
			return
		}
		state.Data["title"] = text
		state.Step = 2
		b.sendText(chatID, "Please enter the author:")

	case 2: // Waiting for author
		if text == "" {
			b.sendText(chatID, "The author cannot be empty. Please enter the author:")
			return
		}
		state.Data["author"] = text
		state.Step = 3
		b.sendText(chatID, "Please enter the ISBN, or - to skip:")

	case 3: // Waiting for ISBN
		if text == "-" {
			text = ""
		}
		state.Data["isbn"] = text
		state.Step = 4
		b.sendText(chatID, "How many copies?")

	case 4: // Waiting for copies
		copies, err := strconv.Atoi(text)
		if err != nil || copies < 0 {
			b.sendText(chatID, "Invalid number. Please enter the number of copies:")
			return
		}

		title, _ := state.Data["title"].(string)
		author, _ := state.Data["author"].(string)
		isbn, _ := state.Data["isbn"].(string)

		book, err := b.lib.AddBook(ctx, title, author, isbn, copies)
		if err != nil {
			b.sendText(chatID, errorText(err))
		} else {
			b.sendText(chatID, fmt.Sprintf("Book created successfully!\n\n📚 %s by %s\n📦 Copies: %d",
				book.Title, book.Author, book.TotalCopies))
		}

		state.Step = stepDone
	}
}
