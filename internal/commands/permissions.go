package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

var PermissionCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "perm",
		Description: "Manage bot permissions",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "add",
				Description: "Add a permission to a user",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "The user to grant permission to",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "node",
						Description: "The permission node or category (e.g. games.bj or games)",
						Required:    true,
					},
				},
			},
			{
				Name:        "remove",
				Description: "Remove a permission from a user",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "The user to revoke permission from",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "node",
						Description: "The permission node",
						Required:    true,
					},
				},
			},
			{
				Name:        "list",
				Description: "List permissions for a user",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "The user to list permissions for",
						Required:    true,
					},
				},
			},
		},
	},
}

func HandlePermissionCommand(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	if DB == nil {
		respondError(s, i, "Database not initialized.")
		return
	}

	subcmd := data.Options[0]
	switch subcmd.Name {
	case "add":
		handlePermChange(s, i, subcmd.Options, grant)
	case "remove":
		handlePermChange(s, i, subcmd.Options, revoke)
	case "list":
		handlePermList(s, i, subcmd.Options)
	}
}

type permChange struct {
	apply  func(userID, node string) error
	verb   string
	prep   string
	prefix string
}

var (
	grant  = permChange{apply: func(u, n string) error { return DB.AddPermission(u, n) }, verb: "Granted", prep: "to", prefix: "✅"}
	revoke = permChange{apply: func(u, n string) error { return DB.RemovePermission(u, n) }, verb: "Revoked", prep: "from", prefix: "🗑️"}
)

func handlePermChange(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption, change permChange) {
	user := options[0].UserValue(s)
	inputNode := options[1].StringValue()

	nodes := resolveNodes(inputNode)
	if len(nodes) == 0 {
		respondError(s, i, fmt.Sprintf("Invalid permission node or category: `%s`", inputNode))
		return
	}

	var done []string
	for _, node := range nodes {
		if err := change.apply(user.ID, node); err != nil {
			log.Errorf("[PERM] %s %s for user %s failed: %v", change.verb, node, user.Username, err)
			continue
		}
		done = append(done, node)
	}
	if len(done) == 0 {
		respondError(s, i, "Failed to update any permissions.")
		return
	}

	log.Infof("[PERM] %s %s %v %s %s", i.Member.User.Username, strings.ToLower(change.verb), done, change.prep, user.Username)
	respondSuccess(s, i, permMessage(change, done, user.Username))
}

func permMessage(change permChange, nodes []string, username string) string {
	if len(nodes) == 1 {
		return fmt.Sprintf("%s %s `%s` %s **%s**.", change.prefix, change.verb, nodes[0], change.prep, username)
	}
	return fmt.Sprintf("%s %s **%d** permission(s) %s **%s**.", change.prefix, change.verb, len(nodes), change.prep, username)
}

// resolveNodes expands input to a single node or every node of a category.
func resolveNodes(input string) []string {
	input = strings.ToLower(strings.TrimSpace(input))
	if IsValidPermissionNode(input) {
		return []string{input}
	}

	categoryNodes := GetPermissionsByCategory(input)
	sort.Strings(categoryNodes)
	return categoryNodes
}

func handlePermList(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	user := options[0].UserValue(s)

	nodes, err := DB.ListPermissions(user.ID)
	if err != nil {
		respondError(s, i, fmt.Sprintf("Failed to list permissions: %v", err))
		return
	}

	if len(nodes) == 0 {
		respondSuccess(s, i, fmt.Sprintf("**%s** has no explicit permissions.", user.Username))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 **Permissions for %s**:\n", user.Username)
	for _, n := range nodes {
		fmt.Fprintf(&sb, "- `%s`\n", n)
	}
	respondSuccess(s, i, sb.String())
}

func respondError(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "❌ " + msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func respondSuccess(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}
