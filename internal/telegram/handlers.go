package telegram

import (
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tyler-le/CraigslistTelegramNotifier/internal/conversation"
	"github.com/tyler-le/CraigslistTelegramNotifier/internal/filters"
)

const locationPrefix = "location_"

// locations offered on the inline keyboard; free-text locations are accepted
// too.
var locations = []string{"New York", "San Francisco", "Los Angeles", "Chicago", "Miami"}

const helpMessage = "Here are the available commands:\n" +
	"/start - Start the bot and initiate the filter creation process\n" +
	"/help - Display this message with a list of commands\n" +
	"/add - Add a new filter\n" +
	"/view - View all your saved filters\n" +
	"/delete - Delete a specific filter\n" +
	"/update - Update an existing filter\n"

func (b *Bot) handleIncomingMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	log.Printf("Incoming message from %d: %q", chatID, text)

	switch text {
	case "/start":
		b.handleStart(chatID)
		return
	case "/help":
		b.sendMessage(chatID, helpMessage)
		return
	case "/add":
		b.handleAdd(chatID)
		return
	case "/view":
		b.handleView(chatID)
		return
	case "/delete":
		b.sendMessage(chatID, "Deletion is not yet supported!")
		return
	case "/update":
		b.sendMessage(chatID, "Update is not yet supported!")
		return
	}

	if b.sessions.Active(chatID) {
		switch strings.ToLower(text) {
		case "confirm":
			b.handleConfirm(chatID)
		case "edit":
			b.handleEdit(chatID)
		default:
			b.advanceSession(chatID, text)
		}
		return
	}

	b.sendMessage(chatID, "I didn't understand that. Please use /start to begin.")
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || !strings.HasPrefix(cb.Data, locationPrefix) {
		return
	}
	chatID := cb.Message.Chat.ID
	sess, ok := b.sessions.Get(chatID)
	if !ok {
		return
	}
	location := strings.TrimPrefix(cb.Data, locationPrefix)
	sess.SetLocation(location)
	b.sendMessage(chatID, fmt.Sprintf("You selected %s. Let's proceed!", location))
	b.sendConfirmation(chatID, sess.Draft)
}

func (b *Bot) handleStart(chatID int64) {
	b.sessions.Ensure(chatID)
	b.sendMessage(chatID, "Welcome! What item are you looking for?")
}

func (b *Bot) handleAdd(chatID int64) {
	b.sessions.Begin(chatID)
	b.sendMessage(chatID, "What item are you looking for?")
}

func (b *Bot) handleView(chatID int64) {
	saved, err := b.repo.ForUser(chatID)
	if err != nil || len(saved) == 0 {
		b.sendMessage(chatID, "You have no saved filters.")
		return
	}
	b.sendMessage(chatID, formatFilters("Your saved filters:\n", saved))
}

// handleConfirm persists the draft and kicks off the on-demand search.
// An incomplete draft is answered with a plain message; nothing is persisted
// and the session is kept.
func (b *Bot) handleConfirm(chatID int64) {
	sess, ok := b.sessions.Get(chatID)
	if !ok {
		return
	}
	if !sess.Draft.Complete() {
		b.sendMessage(chatID, "Your filter is not complete yet. Please answer the remaining questions first.")
		return
	}
	f := filters.Filter{Item: sess.Draft.Item, Price: sess.Draft.Price, Location: sess.Draft.Location}
	if err := b.repo.Append(chatID, f); err != nil {
		log.Printf("failed to save filter for %d: %v", chatID, err)
		b.sendMessage(chatID, "Something went wrong saving your filter. Please try again.")
		return
	}
	b.sessions.Clear(chatID)
	b.sendMessage(chatID, "Your filter has been saved.")
	if b.dispatcher != nil {
		b.dispatcher.RunForUser(chatID)
	}
}

// handleEdit re-collects the draft's fields starting at the item. Saved
// filters are shown for reference but never mutated.
func (b *Bot) handleEdit(chatID int64) {
	sess, ok := b.sessions.Get(chatID)
	if !ok {
		return
	}
	if saved, err := b.repo.ForUser(chatID); err == nil && len(saved) > 0 {
		b.sendMessage(chatID, formatFilters("Select the filter you want to edit:\n", saved))
	}
	sess.BeginEdit()
	b.sendMessage(chatID, "What item are you looking for?")
}

func (b *Bot) advanceSession(chatID int64, text string) {
	sess, ok := b.sessions.Get(chatID)
	if !ok {
		return
	}
	switch sess.Advance(text) {
	case conversation.PromptPrice:
		b.sendMessage(chatID, "What price are you looking for?")
	case conversation.PromptLocation:
		b.sendLocationKeyboard(chatID)
	case conversation.PromptConfirmation:
		b.sendConfirmation(chatID, sess.Draft)
	}
}

func (b *Bot) sendLocationKeyboard(chatID int64) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(locations))
	for _, loc := range locations {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(loc, locationPrefix+loc),
		))
	}
	msg := tgbotapi.NewMessage(chatID, "Select a location:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send location keyboard to %d: %v", chatID, err)
	}
}

func (b *Bot) sendConfirmation(chatID int64, d conversation.Draft) {
	b.sendMessage(chatID, fmt.Sprintf(
		"Please confirm the following filter details:\n"+
			"Item: %s\nPrice: %s\nLocation: %s\n"+
			"Reply with 'confirm' to save or 'edit' to modify.",
		d.Item, d.Price, d.Location))
}

func formatFilters(header string, fs []filters.Filter) string {
	var sb strings.Builder
	sb.WriteString(header)
	for i, f := range fs {
		sb.WriteString(fmt.Sprintf("\nFilter %d:\nItem: %s\nPrice: %s\nLocation: %s\n", i+1, f.Item, f.Price, f.Location))
	}
	return sb.String()
}
