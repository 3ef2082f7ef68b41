package commands

import (
	"strings"

	"croupier/internal/database"
	"croupier/internal/events"
	"croupier/internal/voice"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

// CommandPermissionMap maps command names to their required permission node.
var CommandPermissionMap = map[string]string{
	// Economy
	"money":       "economy.money",
	"admin.money": "admin.money",

	// Games
	"bj":            "games.bj",
	"games.bj.shoe": "games.bj.shoe",

	// Voice
	"sfx": "voice.sfx",

	// Permissions
	"perm": "admin.perm",
}

// DB instance for permission checks, balances and results.
var DB *database.DB
var OwnerID string

// Voice plays sound effects. Nil disables /sfx and the shuffle sound.
var Voice *voice.Manager

// Audit receives settled rounds. Nil disables the audit log.
var Audit *events.Logger

func AllCommands() []*discordgo.ApplicationCommand {
	all := make([]*discordgo.ApplicationCommand, 0, len(EconomyCommands)+len(BlackjackCommands)+len(SfxCommands)+len(PermissionCommands))
	all = append(all, EconomyCommands...)
	all = append(all, BlackjackCommands...)
	all = append(all, SfxCommands...)
	all = append(all, PermissionCommands...)
	return all
}

// RegisterCommands registers all slash commands with Discord.
func RegisterCommands(s *discordgo.Session, guildID string) {
	log.Info("Registering commands...")
	for _, cmd := range AllCommands() {
		_, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, cmd)
		if err != nil {
			log.Errorf("Cannot create command '%v': %v", cmd.Name, err)
		}
	}
	log.Info("Commands registered successfully!")
}

// HandleInteraction is the central dispatcher for all slash commands.
func HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Member == nil || i.Member.User == nil {
		// DMs have no guild economy or table.
		return
	}

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		id := i.MessageComponentData().CustomID
		if strings.HasPrefix(id, "game_bj_") {
			if !hasPermission(i.Member.User.ID, "bj") {
				respondError(s, i, "You do not have permission to play blackjack.")
				return
			}
			HandleGameComponent(s, i)
		}
		return
	case discordgo.InteractionApplicationCommandAutocomplete:
		if i.ApplicationCommandData().Name == "sfx" {
			HandleSfxAutocomplete(s, i)
		}
		return
	case discordgo.InteractionApplicationCommand:
	default:
		return
	}

	data := i.ApplicationCommandData()

	// Permission Check
	if !hasPermission(i.Member.User.ID, data.Name) {
		log.Warnf("[COMMAND DENIED] User: %s (%s) | Command: %s | Reason: Low Permissions", i.Member.User.Username, i.Member.User.ID, data.Name)
		s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "🚫 You do not have permission to use this command.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		return
	}

	log.Infof("[COMMAND EXEC] User: %s (%s) | Guild: %s | Command: %s", i.Member.User.Username, i.Member.User.ID, i.GuildID, data.Name)

	switch data.Name {
	case "money":
		HandleEconomyCommand(s, i, data)
	case "bj":
		HandleBlackjackCommand(s, i, data)
	case "sfx":
		HandleSfxCommand(s, i, data)
	case "perm":
		HandlePermissionCommand(s, i, data)
	}
}

func hasPermission(userID string, commandName string) bool {
	// The application owner is never locked out.
	if userID == OwnerID {
		return true
	}

	// Every command needs a node; unmapped commands are denied.
	node, exists := CommandPermissionMap[commandName]
	if !exists {
		return false
	}

	if DB == nil {
		return false
	}

	has, err := DB.HasPermission(userID, node)
	if err != nil {
		log.Errorf("Error checking permission for user %s node %s: %v", userID, node, err)
		return false
	}

	return has
}

// IsValidPermissionNode checks if a permission node exists in the map.
func IsValidPermissionNode(node string) bool {
	for _, n := range CommandPermissionMap {
		if n == node {
			return true
		}
	}
	return false
}

// GetPermissionsByCategory returns all permission nodes under a category,
// e.g. "games" -> "games.bj", "games.bj.shoe".
func GetPermissionsByCategory(category string) []string {
	var nodes []string
	prefix := category + "."
	for _, node := range CommandPermissionMap {
		if strings.HasPrefix(node, prefix) {
			nodes = append(nodes, node)
		}
	}
	return uniqueStrings(nodes)
}

func uniqueStrings(input []string) []string {
	u := make([]string, 0, len(input))
	m := make(map[string]bool)
	for _, val := range input {
		if !m[val] {
			m[val] = true
			u = append(u, val)
		}
	}
	return u
}
