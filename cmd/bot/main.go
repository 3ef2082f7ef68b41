package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"croupier/internal/blackjack"
	"croupier/internal/commands"
	"croupier/internal/database"
	"croupier/internal/discord"
	"croupier/internal/events"
	"croupier/internal/scheduler"
	"croupier/internal/voice"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

func main() {
	// 1. Load Configuration
	cfg, err := discord.Load()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)
	log.SetReportTimestamp(true)

	// 2. Initialize Bot
	bot, err := discord.New(cfg)
	if err != nil {
		log.Fatalf("Error initializing bot: %v", err)
	}

	// 3. Initialize Database
	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}
	defer db.Close()

	// Inject dependencies into commands package
	commands.DB = db
	commands.GameConfig = blackjack.GameConfig{
		MaxPlayers:   cfg.MaxPlayers,
		LobbyTimeout: cfg.LobbyTimeout,
		TurnTimeout:  cfg.TurnTimeout,
	}

	app, err := bot.Session.Application("@me")
	if err != nil {
		log.Warnf("Could not fetch application info: %v", err)
	} else if app.Owner != nil {
		commands.OwnerID = app.Owner.ID
		log.Infof("Bot Owner ID set to: %s", commands.OwnerID)
	} else if app.Team != nil {
		commands.OwnerID = app.Team.OwnerID
		log.Infof("Bot is owned by a team. Owner ID set to team owner: %s", commands.OwnerID)
	}

	// 4. Initialize Voice
	if _, err := os.Stat(cfg.SoundsDir); err != nil {
		log.Warnf("Sounds directory %q not found. Sound effects disabled.", cfg.SoundsDir)
	} else {
		commands.Voice = voice.NewManager(bot.Session, cfg.SoundsDir)
	}

	// 5. Register Event Handlers
	bot.Session.AddHandler(commands.HandleInteraction)

	if cfg.LogChannelID != "" {
		commands.Audit = events.NewLogger(bot.Session, cfg)
	}

	bot.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Infof("Logged in as: %v#%v", s.State.User.Username, s.State.User.Discriminator)
	})

	// 6. Start Bot
	if err := bot.Start(); err != nil {
		log.Fatalf("Error starting bot: %v", err)
	}
	defer bot.Stop()

	// 7. Register Commands
	commands.RegisterCommands(bot.Session, cfg.GuildID)

	// 8. Scheduled jobs
	cronService, err := scheduler.SetupCron(&scheduler.Jobs{
		DB:        db,
		Retention: time.Duration(cfg.ResultRetentionDays) * 24 * time.Hour,
		Tables:    commands.ForEachTable,
	})
	if err != nil {
		log.Fatalf("Error scheduling jobs: %v", err)
	}

	// 9. Wait for Shutdown Signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	log.Info("Bot is running. Press Ctrl+C to exit.")
	<-stop

	log.Info("Gracefully shutting down...")
	<-cronService.Stop().Done()
	if commands.Voice != nil {
		commands.Voice.Shutdown()
	}
}
