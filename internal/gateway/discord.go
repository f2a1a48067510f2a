package gateway

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/rahul/workbench/internal/agent"
)

// DiscordGateway mirrors TelegramGateway on a Discord channel.
type DiscordGateway struct {
	Session   *discordgo.Session
	Commands  *Commands
	ChannelID string
}

func NewDiscordGateway(token, channelID string, commands *Commands) (*DiscordGateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentDirectMessages | discordgo.IntentMessageContent

	dg := &DiscordGateway{Session: s, Commands: commands, ChannelID: channelID}
	s.AddHandler(dg.onMessage)
	return dg, nil
}

func (dg *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if _, ok := ParseCommand(m.Content); !ok {
		return
	}

	reply := dg.Commands.Handle(context.Background(), m.Author.ID, m.Content)
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		log.Printf("discord reply failed: %v", err)
	}
}

// Start opens the websocket. Events are delivered on discordgo's own goroutines.
func (dg *DiscordGateway) Start() error {
	if err := dg.Session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	log.Printf("Discord gateway connected")
	return nil
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	_, err := dg.Session.ChannelMessageSend(chatID, text)
	return err
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}

func (dg *DiscordGateway) NotifyReview(ctx context.Context, n agent.ReviewNotice) error {
	if dg.ChannelID == "" {
		return nil
	}
	return dg.Send(dg.ChannelID, FormatNotice(n))
}
