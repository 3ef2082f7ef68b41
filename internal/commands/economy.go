package commands

import (
	"errors"
	"fmt"
	"strings"

	"croupier/internal/database"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

const topLimit = 10

var EconomyCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "money",
		Description: "Economy commands",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "balance",
				Description: "Check balance",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "User to check balance of",
						Required:    false,
					},
				},
			},
			{
				Name:        "send",
				Description: "Send money to another user",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "User to send money to",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "amount",
						Description: "Amount to send",
						Required:    true,
					},
				},
			},
			{
				Name:        "add",
				Description: "Add money to a user (Admin only)",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "User to add money to",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "amount",
						Description: "Amount to add (negative to remove)",
						Required:    true,
					},
				},
			},
			{
				Name:        "top",
				Description: "Richest players in this server",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	},
}

func HandleEconomyCommand(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if DB == nil {
		respondError(s, i, "Database not initialized.")
		return
	}

	if len(data.Options) == 0 {
		handleBalance(s, i, nil)
		return
	}

	subcmd := data.Options[0]
	switch subcmd.Name {
	case "balance":
		handleBalance(s, i, subcmd.Options)
	case "send":
		handleSend(s, i, subcmd.Options)
	case "add":
		handleAddMoney(s, i, subcmd.Options)
	case "top":
		handleTop(s, i)
	}
}

func handleBalance(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	user := i.Member.User
	if len(options) > 0 {
		user = options[0].UserValue(s)
	}

	bal, err := DB.GetBalance(i.GuildID, user.ID)
	if err != nil {
		log.Errorf("[ECONOMY] GetBalance error: %v", err)
		respondError(s, i, "Failed to fetch balance.")
		return
	}

	respondSuccess(s, i, fmt.Sprintf("💰 **%s** has **$%d**", user.Username, bal))
}

func handleSend(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	toUser := options[0].UserValue(s)
	amount := int(options[1].IntValue())

	if amount <= 0 {
		respondError(s, i, "Amount must be positive.")
		return
	}

	if toUser.ID == i.Member.User.ID {
		respondError(s, i, "You cannot send money to yourself.")
		return
	}

	if toUser.Bot {
		respondError(s, i, "You cannot send money to bots.")
		return
	}

	err := DB.Transfer(i.GuildID, i.Member.User.ID, toUser.ID, amount)
	if err != nil {
		if errors.Is(err, database.ErrInsufficientFunds) {
			respondError(s, i, "Insufficient funds.")
		} else {
			log.Errorf("[ECONOMY] Transfer error: %v", err)
			respondError(s, i, "Transaction failed.")
		}
		return
	}

	log.Infof("[ECONOMY] %s sent $%d to %s in guild %s", i.Member.User.Username, amount, toUser.Username, i.GuildID)
	respondSuccess(s, i, fmt.Sprintf("💸 Sent **$%d** to **%s**.", amount, toUser.Username))
}

func handleAddMoney(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	// "money" only grants balance/send/top; minting needs its own node.
	if !hasPermission(i.Member.User.ID, "admin.money") {
		respondError(s, i, "You do not have permission to use this command.")
		return
	}

	targetUser := options[0].UserValue(s)
	amount := int(options[1].IntValue())

	if err := DB.AddBalance(i.GuildID, targetUser.ID, amount); err != nil {
		log.Errorf("[ECONOMY] AddBalance error: %v", err)
		respondError(s, i, "Failed to add money.")
		return
	}

	log.Infof("[ECONOMY] %s added $%d to %s in guild %s", i.Member.User.Username, amount, targetUser.Username, i.GuildID)
	respondSuccess(s, i, fmt.Sprintf("✅ Added **$%d** to **%s**.", amount, targetUser.Username))
}

func handleTop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	top, err := DB.TopBalances(i.GuildID, topLimit)
	if err != nil {
		log.Errorf("[ECONOMY] TopBalances error: %v", err)
		respondError(s, i, "Failed to fetch leaderboard.")
		return
	}
	respondEmbed(s, i, leaderboardEmbed(top), false)
}

func leaderboardEmbed(top []database.Holding) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "💰 Leaderboard",
		Color: 0xF1C40F,
	}
	if len(top) == 0 {
		embed.Description = "Nobody has any money yet."
		return embed
	}

	lines := make([]string, 0, len(top))
	for n, h := range top {
		lines = append(lines, fmt.Sprintf("**%d.** <@%s> $%d", n+1, h.UserID, h.Balance))
	}
	embed.Description = strings.Join(lines, "\n")
	return embed
}
