package commands

import (
	"errors"
	"fmt"
	"strings"

	"croupier/internal/voice"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

// Discord caps autocomplete at 25 choices.
const maxChoices = 25

var SfxCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "sfx",
		Description: "Play a sound effect in your voice channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "name",
				Description:  "Sound to play",
				Required:     true,
				Autocomplete: true,
			},
		},
	},
}

func HandleSfxCommand(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if Voice == nil {
		respondError(s, i, "Voice is not available.")
		return
	}
	if len(data.Options) == 0 {
		return
	}
	name := data.Options[0].StringValue()

	vs, err := s.State.VoiceState(i.GuildID, i.Member.User.ID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		respondError(s, i, "You must be in a voice channel!")
		return
	}

	if err := Voice.Play(i.GuildID, vs.ChannelID, name); err != nil {
		if errors.Is(err, voice.ErrUnknownSound) {
			respondError(s, i, fmt.Sprintf("Unknown sound `%s`.", name))
			return
		}
		log.Errorf("[SFX] Failed to play %s: %v", name, err)
		respondError(s, i, "Failed to play sound.")
		return
	}

	log.Infof("[SFX] %s played %s in guild %s", i.Member.User.Username, name, i.GuildID)
	respondEphemeral(s, i, fmt.Sprintf("🔊 Playing **%s**", name))
}

func HandleSfxAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if Voice == nil {
		return
	}
	data := i.ApplicationCommandData()
	typed := ""
	if len(data.Options) > 0 {
		typed = data.Options[0].StringValue()
	}

	names, err := Voice.Sounds()
	if err != nil {
		log.Errorf("[SFX] Failed to list sounds: %v", err)
		return
	}

	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: soundChoices(names, typed),
		},
	})
}

func soundChoices(names []string, typed string) []*discordgo.ApplicationCommandOptionChoice {
	typed = strings.ToLower(typed)
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, maxChoices)
	for _, n := range names {
		if !strings.Contains(strings.ToLower(n), typed) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: n, Value: n})
		if len(choices) == maxChoices {
			break
		}
	}
	return choices
}
