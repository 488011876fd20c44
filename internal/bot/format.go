package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lms/internal/models"
)

// maxListed caps list replies below Telegram's message size limit.
const maxListed = 50

const dateLayout = "2006-01-02"

// formatBooks renders the catalog as a numbered list.
func formatBooks(books []models.Book) string {
	if len(books) == 0 {
		return "The catalog is empty. Add a book with /new_book"
	}

	var text strings.Builder
	text.WriteString("📚 Catalog:\n\n")
	for i, book := range books {
		if i == maxListed {
			fmt.Fprintf(&text, "\n...and %d more", len(books)-maxListed)
			break
		}
		fmt.Fprintf(&text, "%d. %s by %s (%d/%d available)\n",
			i+1, book.Title, book.Author, book.AvailableCopies, book.TotalCopies)
	}
	return text.String()
}

// formatLoans renders loans with book titles and member names. Overdue loans
// are marked. Books deleted since the loan was made show their id.
func formatLoans(title string, loans []models.LoanRecord, books map[string]models.Book, members map[string]models.Member, now time.Time) string {
	var text strings.Builder
	text.WriteString(title)
	text.WriteString("\n\n")

	for i, loan := range loans {
		if i == maxListed {
			fmt.Fprintf(&text, "\n...and %d more", len(loans)-maxListed)
			break
		}

		bookTitle := loan.BookID
		if book, ok := books[loan.BookID]; ok {
			bookTitle = book.Title
		}
		memberName := loan.MemberID
		if member, ok := members[loan.MemberID]; ok {
			memberName = member.Name
		}

		marker := ""
		if loan.IsOverdue(now) {
			marker = " ⚠️ overdue"
		}
		fmt.Fprintf(&text, "%d. %s (%s), due %s%s\n",
			i+1, bookTitle, memberName, loan.DueAt.Format(dateLayout), marker)
	}
	return text.String()
}

func formatStats(s models.Stats) string {
	var text strings.Builder
	text.WriteString("📊 Library Statistics\n\n")
	fmt.Fprintf(&text, "📚 Titles: %d\n", s.Titles)
	fmt.Fprintf(&text, "📦 Copies: %d total, %d available, %d lent\n", s.TotalCopies, s.AvailableCopies, s.LentCopies)
	fmt.Fprintf(&text, "👥 Members: %d\n", s.Members)
	fmt.Fprintf(&text, "🔖 Active loans: %d\n", s.ActiveLoans)
	fmt.Fprintf(&text, "⚠️ Overdue loans: %d\n", s.OverdueLoans)
	return text.String()
}

type button struct {
	label string
	data  string
}

// keyboard lays buttons out in rows of the given width.
func keyboard(buttons []button, perRow int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var currentRow []tgbotapi.InlineKeyboardButton
	for i, btn := range buttons {
		currentRow = append(currentRow, tgbotapi.NewInlineKeyboardButtonData(btn.label, btn.data))

		if len(currentRow) == perRow || i == len(buttons)-1 {
			rows = append(rows, currentRow)
			currentRow = nil
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func bookButtons(books []models.Book) []button {
	buttons := make([]button, 0, len(books))
	for _, book := range books {
		buttons = append(buttons, button{
			label: fmt.Sprintf("%s (%d)", book.Title, book.AvailableCopies),
			data:  prefixBorrowBook + book.ID,
		})
	}
	return buttons
}

func memberButtons(members []models.Member) []button {
	buttons := make([]button, 0, len(members))
	for _, m := range members {
		emoji := "🎓"
		if m.Role == models.RoleAdmin {
			emoji = "🛠"
		}
		buttons = append(buttons, button{
			label: fmt.Sprintf("%s %s", emoji, m.Name),
			data:  prefixBorrowMember + m.ID,
		})
	}
	return buttons
}

func loanButtons(loans []models.LoanRecord, books map[string]models.Book, members map[string]models.Member) []button {
	buttons := make([]button, 0, len(loans))
	for _, loan := range loans {
		bookTitle := loan.BookID
		if book, ok := books[loan.BookID]; ok {
			bookTitle = book.Title
		}
		memberName := loan.MemberID
		if member, ok := members[loan.MemberID]; ok {
			memberName = member.Name
		}
		buttons = append(buttons, button{
			label: fmt.Sprintf("%s (%s)", bookTitle, memberName),
			data:  prefixReturn + loan.ID,
		})
	}
	return buttons
}
