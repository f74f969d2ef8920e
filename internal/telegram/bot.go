package telegram

import (
	"context"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tyler-le/CraigslistTelegramNotifier/internal/conversation"
	"github.com/tyler-le/CraigslistTelegramNotifier/internal/filters"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type botAPISender struct{ api *tgbotapi.BotAPI }

func (s botAPISender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.api.Send(c)
}

// searchDispatcher triggers the on-demand search that follows a confirmed
// filter.
type searchDispatcher interface {
	RunForUser(userID int64)
}

type Bot struct {
	api        *tgbotapi.BotAPI
	s          sender
	sessions   *conversation.Manager
	repo       filters.Repository
	dispatcher searchDispatcher
}

func New(botToken string, repo filters.Repository, dispatcher searchDispatcher) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:        api,
		s:          botAPISender{api: api},
		sessions:   conversation.NewManager(),
		repo:       repo,
		dispatcher: dispatcher,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleIncomingMessage(update.Message)
				continue
			}
			if update.CallbackQuery != nil {
				b.handleCallback(update.CallbackQuery)
				continue
			}
		}
	}
}

// SendMessage delivers a plain text message. It implements the notifier used
// by the sweep scheduler; send failures are logged and swallowed.
func (b *Bot) SendMessage(chatID int64, text string) {
	b.sendMessage(chatID, text)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send message to %d: %v", chatID, err)
	}
}
