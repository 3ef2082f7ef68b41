package discord

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken        string
	GuildID             string
	LogChannelID        string
	Database            string
	SoundsDir           string
	LogLevel            log.Level
	LobbyTimeout        time.Duration
	TurnTimeout         time.Duration
	MaxPlayers          int
	ResultRetentionDays int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}

	level := log.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsed, err := log.ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		level = parsed
	}

	lobby := 30 // seconds
	if s := os.Getenv("BJ_LOBBY_TIMEOUT"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			lobby = n
		}
	}

	turn := 30 // seconds
	if s := os.Getenv("BJ_TURN_TIMEOUT"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			turn = n
		}
	}

	maxPlayers := 5
	if s := os.Getenv("BJ_MAX_PLAYERS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 10 {
			maxPlayers = n
		}
	}

	retention := 90
	if s := os.Getenv("RESULT_RETENTION_DAYS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			retention = n
		}
	}

	return &Config{
		DiscordToken:        token,
		GuildID:             os.Getenv("GUILD_ID"),
		LogChannelID:        os.Getenv("LOG_CHANNEL_ID"),
		Database:            getEnv("DATABASE", "croupier.db"),
		SoundsDir:           getEnv("SOUNDS_DIR", "sounds"),
		LogLevel:            level,
		LobbyTimeout:        time.Duration(lobby) * time.Second,
		TurnTimeout:         time.Duration(turn) * time.Second,
		MaxPlayers:          maxPlayers,
		ResultRetentionDays: retention,
	}, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
