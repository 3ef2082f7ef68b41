package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

// Bot wraps the gateway session.
type Bot struct {
	Session *discordgo.Session
	Config  *Config
}

func New(cfg *Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	return &Bot{
		Session: session,
		Config:  cfg,
	}, nil
}

func (b *Bot) Start() error {
	// Voice states feed State.VoiceState for /sfx and the shuffle sound.
	b.Session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	b.Session.StateEnabled = true

	err := b.Session.Open()
	if err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	log.Info("Bot is now connected to the gateway.")
	return nil
}

func (b *Bot) Stop() error {
	return b.Session.Close()
}
