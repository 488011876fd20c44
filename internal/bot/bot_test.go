package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"lms/internal/id"
	"lms/internal/library"
	"lms/internal/models"
	"lms/internal/storage/stubs"
)

// recorder captures outgoing messages instead of calling Telegram.
type recorder struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
}

func (r *recorder) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		r.messages = append(r.messages, msg)
	}
	return tgbotapi.Message{}, nil
}

func (r *recorder) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (r *recorder) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		t.Fatal("Expected a message to be sent")
	}
	return r.messages[len(r.messages)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

const (
	userID = int64(123)
	chatID = int64(456)
)

func setupBot(t *testing.T) (*Bot, *library.Library, *recorder) {
	t.Helper()

	ctx := context.Background()
	lib, err := library.Open(ctx, library.Options{
		Storage: stubs.NewMemoryDB(),
		IDs:     &id.Sequence{Prefix: "id"},
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Failed to open library: %v", err)
	}

	_, err = lib.SeedIfEmpty(ctx, func() ([]models.Member, []models.Book) {
		return []models.Member{
				{ID: "alice", StudentID: "STU1", Name: "Alice", Role: models.RoleStudent},
			}, []models.Book{
				{ID: "b1", Title: "Dune", Author: "Frank Herbert", TotalCopies: 1, AvailableCopies: 1},
			}
	})
	if err != nil {
		t.Fatalf("Failed to seed library: %v", err)
	}

	rec := &recorder{}
	b := newBot(lib, []int64{userID}, zap.NewNop())
	b.out = rec
	return b, lib, rec
}

func command(name string) *tgbotapi.Message {
	text := "/" + name
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}
}

func text(s string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: s,
	}
}

func callback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "q1",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}
}

func TestBot_NewBookConversation(t *testing.T) {
	bot, lib, rec := setupBot(t)

	bot.handleMessage(command("new_book"))

	state, ok := bot.getState(userID)
	if !ok {
		t.Fatal("Expected conversation state to be created")
	}
	if state.Command != cmdNewBook {
		t.Errorf("Expected command %q, got %q", cmdNewBook, state.Command)
	}

	for _, input := range []string{"The Hobbit", "J.R.R. Tolkien", "-", "3"} {
		bot.handleMessage(text(input))
	}

	if _, ok := bot.getState(userID); ok {
		t.Error("Expected conversation state to be cleared")
	}
	if !strings.Contains(rec.last(t).Text, "Book created successfully") {
		t.Errorf("Unexpected reply: %q", rec.last(t).Text)
	}

	books, err := lib.SearchBooks(context.Background(), "hobbit")
	if err != nil {
		t.Fatalf("Failed to search books: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("Expected 1 book, got %d", len(books))
	}
	if books[0].TotalCopies != 3 || books[0].AvailableCopies != 3 || books[0].ISBN != "" {
		t.Errorf("Unexpected book: %+v", books[0])
	}
}

func TestBot_NewBookInvalidCopies(t *testing.T) {
	bot, _, rec := setupBot(t)

	bot.handleMessage(command("new_book"))
	for _, input := range []string{"Title", "Author", "978"} {
		bot.handleMessage(text(input))
	}
	bot.handleMessage(text("many"))

	state, ok := bot.getState(userID)
	if !ok {
		t.Fatal("Expected conversation to continue after invalid input")
	}
	if state.Step != 4 {
		t.Errorf("Expected to stay on step 4, got %d", state.Step)
	}
	if !strings.Contains(rec.last(t).Text, "Invalid number") {
		t.Errorf("Unexpected reply: %q", rec.last(t).Text)
	}
}

func TestBot_BorrowAndReturnFlow(t *testing.T) {
	bot, lib, rec := setupBot(t)
	ctx := context.Background()

	bot.handleMessage(command("borrow"))
	markup, ok := rec.last(t).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) != 1 {
		t.Fatalf("Expected book keyboard, got %#v", rec.last(t).ReplyMarkup)
	}

	bot.handleCallbackQuery(callback(prefixBorrowBook + "b1"))
	if !strings.Contains(rec.last(t).Text, "Dune") {
		t.Errorf("Expected member prompt for Dune, got %q", rec.last(t).Text)
	}

	bot.handleCallbackQuery(callback(prefixBorrowMember + "alice"))
	if !strings.Contains(rec.last(t).Text, "Loan recorded") {
		t.Fatalf("Expected loan confirmation, got %q", rec.last(t).Text)
	}
	if _, ok := bot.getState(userID); ok {
		t.Error("Expected borrow conversation to be cleared")
	}

	book, _ := lib.GetBook(ctx, "b1")
	if book.AvailableCopies != 0 {
		t.Errorf("Expected 0 available copies, got %d", book.AvailableCopies)
	}

	// Nothing left to borrow
	bot.handleMessage(command("borrow"))
	if !strings.Contains(rec.last(t).Text, "No copies are available") {
		t.Errorf("Unexpected reply: %q", rec.last(t).Text)
	}

	bot.handleMessage(command("loans"))
	if !strings.Contains(rec.last(t).Text, "Dune (Alice)") {
		t.Errorf("Expected loan listing, got %q", rec.last(t).Text)
	}

	active, _ := lib.ListActiveLoans(ctx)
	if len(active) != 1 {
		t.Fatalf("Expected 1 active loan, got %d", len(active))
	}

	bot.handleMessage(command("return"))
	bot.handleCallbackQuery(callback(prefixReturn + active[0].ID))
	if !strings.Contains(rec.last(t).Text, "Returned: Dune") {
		t.Errorf("Unexpected reply: %q", rec.last(t).Text)
	}

	book, _ = lib.GetBook(ctx, "b1")
	if book.AvailableCopies != 1 {
		t.Errorf("Expected 1 available copy, got %d", book.AvailableCopies)
	}
}

func TestBot_BorrowOutOfStockRace(t *testing.T) {
	bot, lib, rec := setupBot(t)
	ctx := context.Background()

	bot.handleMessage(command("borrow"))
	bot.handleCallbackQuery(callback(prefixBorrowBook + "b1"))

	// Someone else takes the last copy before the member is picked
	if _, err := lib.Borrow(ctx, "b1", "alice"); err != nil {
		t.Fatalf("Failed to borrow: %v", err)
	}

	bot.handleCallbackQuery(callback(prefixBorrowMember + "alice"))
	if !strings.Contains(rec.last(t).Text, "Try again after someone returns a copy") {
		t.Errorf("Expected out of stock reply, got %q", rec.last(t).Text)
	}
}

func TestBot_DoubleClickedMemberRecordsOneLoan(t *testing.T) {
	bot, lib, _ := setupBot(t)
	ctx := context.Background()

	book, err := lib.AddBook(ctx, "To Live", "Yu Hua", "", 5)
	if err != nil {
		t.Fatalf("Failed to add book: %v", err)
	}

	bot.handleMessage(command("borrow"))
	bot.handleCallbackQuery(callback(prefixBorrowBook + book.ID))

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bot.HandleWebhookUpdate(tgbotapi.Update{CallbackQuery: callback(prefixBorrowMember + "alice")})
		}()
	}
	wg.Wait()

	loans, _ := lib.ListLoans(ctx)
	if len(loans) != 1 {
		t.Errorf("Expected 1 loan, got %d", len(loans))
	}
}

func TestBot_CallbackWithoutConversationIsIgnored(t *testing.T) {
	bot, lib, rec := setupBot(t)

	bot.handleCallbackQuery(callback(prefixBorrowMember + "alice"))

	if rec.count() != 0 {
		t.Errorf("Expected no reply, got %d messages", rec.count())
	}
	loans, _ := lib.ListLoans(context.Background())
	if len(loans) != 0 {
		t.Errorf("Expected no loans, got %d", len(loans))
	}
}

func TestBot_CommandCancelsConversation(t *testing.T) {
	bot, _, rec := setupBot(t)

	bot.handleMessage(command("new_book"))
	bot.handleMessage(command("stats"))

	if _, ok := bot.getState(userID); ok {
		t.Error("Expected conversation to be canceled by a new command")
	}
	if !strings.Contains(rec.last(t).Text, "Library Statistics") {
		t.Errorf("Expected stats reply, got %q", rec.last(t).Text)
	}
}

func TestBot_CommandAfterCallbackCompletion(t *testing.T) {
	bot, _, rec := setupBot(t)

	// Simulate a completed conversation state as would happen after a callback
	bot.setState(userID, &ConversationState{Command: cmdBorrow, Step: stepDone, Data: map[string]interface{}{}})

	bot.handleMessage(command("books"))

	if !strings.Contains(rec.last(t).Text, "Dune by Frank Herbert (1/1 available)") {
		t.Errorf("Expected catalog reply, got %q", rec.last(t).Text)
	}
}

func TestBot_UnauthorizedUser(t *testing.T) {
	bot, _, rec := setupBot(t)

	msg := command("books")
	msg.From.ID = 999
	bot.HandleWebhookUpdate(tgbotapi.Update{Message: msg})

	if !strings.Contains(rec.last(t).Text, "not authorized") {
		t.Errorf("Expected rejection, got %q", rec.last(t).Text)
	}
}

func TestBot_PanicRecovery(t *testing.T) {
	bot, _, _ := setupBot(t)

	// Missing From makes handling panic; it must be recovered
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("handleCallbackQuery panicked: %v", r)
		}
	}()

	bot.handleCallbackQuery(&tgbotapi.CallbackQuery{ID: "q", Data: prefixReturn + "x"})
}

func TestBot_NilSenderIsSafe(t *testing.T) {
	bot, _, _ := setupBot(t)
	bot.out = nil

	bot.handleMessage(command("start"))
}

func TestWebhookHandler(t *testing.T) {
	bot, _, _ := setupBot(t)
	handler := bot.WebhookHandler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram-webhook", strings.NewReader(`{"update_id":1}`)))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram-webhook", strings.NewReader(`{`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestHandleUpdates_StopsOnCancel(t *testing.T) {
	bot, _, _ := setupBot(t)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan tgbotapi.Update)
	done := make(chan struct{})

	go func() {
		bot.handleUpdates(ctx, updates)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleUpdates did not stop after cancel")
	}
}
