package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rahul/workbench/internal/agent"
)

// TelegramGateway posts review notices to a chat and answers review
// commands from linked users.
type TelegramGateway struct {
	Bot      *tgbotapi.BotAPI
	Commands *Commands
	ChatID   string
}

func NewTelegramGateway(token, chatID string, commands *Commands) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:      bot,
		Commands: commands,
		ChatID:   chatID,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil || update.Message.From == nil {
			continue
		}

		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

		sender := strconv.FormatInt(update.Message.From.ID, 10)
		reply := tg.Commands.Handle(context.Background(), sender, update.Message.Text)

		msg := tgbotapi.NewMessage(update.Message.Chat.ID, reply)
		if _, err := tg.Bot.Send(msg); err != nil {
			log.Printf("telegram reply failed: %v", err)
		}
	}
	return nil
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(id, text)
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}

// NotifyReview posts a pending review to the configured chat.
func (tg *TelegramGateway) NotifyReview(ctx context.Context, n agent.ReviewNotice) error {
	if tg.ChatID == "" {
		return nil
	}
	return tg.Send(tg.ChatID, FormatNotice(n))
}
