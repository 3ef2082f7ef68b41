package events

import (
	"fmt"
	"strings"
	"time"

	"croupier/internal/blackjack"
	"croupier/internal/discord"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

// Logger posts settled rounds to the audit channel.
type Logger struct {
	Session      *discordgo.Session
	LogChannelID string
}

func NewLogger(s *discordgo.Session, cfg *discord.Config) *Logger {
	return &Logger{
		Session:      s,
		LogChannelID: cfg.LogChannelID,
	}
}

// RoundSummary is everything the audit log shows about one settled round.
type RoundSummary struct {
	GuildID      string
	ChannelID    string
	RoundID      string
	Dealer       blackjack.Hand
	Results      []blackjack.Result
	Names        map[string]string
	Reshuffled   bool
	Remaining    int
	RunningCount int
	At           time.Time
}

// HouseNet is the dealer's win for the round.
func (r RoundSummary) HouseNet() int {
	net := 0
	for _, res := range r.Results {
		net -= res.Delta
	}
	return net
}

func (r RoundSummary) name(id string) string {
	if n, ok := r.Names[id]; ok && n != "" {
		return n
	}
	return "<@" + id + ">"
}

// RoundEmbed renders the audit entry of a round.
func RoundEmbed(r RoundSummary) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		lines = append(lines, fmt.Sprintf("%s: **%s** %+d (%d) bet $%d", r.name(res.ID), res.Outcome, res.Delta, res.Total, res.Wager))
	}

	color := 0x2ECC71 // house up
	if r.HouseNet() < 0 {
		color = 0xE74C3C
	}

	shoe := fmt.Sprintf("%d cards | running count %d", r.Remaining, r.RunningCount)
	if r.Reshuffled {
		shoe += " | reshuffled"
	}

	return &discordgo.MessageEmbed{
		Title:       "Blackjack Round Settled",
		Description: fmt.Sprintf("Round `%s` in <#%s>\n\n%s", r.RoundID, r.ChannelID, strings.Join(lines, "\n")),
		Color:       color,
		Timestamp:   r.At.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Dealer", Value: fmt.Sprintf("(%d) %s", r.Dealer.Total(), r.Dealer), Inline: false},
			{Name: "House Net", Value: fmt.Sprintf("%+d", r.HouseNet()), Inline: true},
			{Name: "Shoe", Value: shoe, Inline: true},
		},
	}
}

// OnRoundSettled posts the round to the audit channel.
func (l *Logger) OnRoundSettled(r RoundSummary) {
	if l == nil || l.LogChannelID == "" {
		return
	}
	if _, err := l.Session.ChannelMessageSendEmbed(l.LogChannelID, RoundEmbed(r)); err != nil {
		log.Errorf("[EVENT] Failed to post round %s: %v", r.RoundID, err)
		return
	}
	log.Debugf("[EVENT] Round Settled: %s (guild %s, house %+d)", r.RoundID, r.GuildID, r.HouseNet())
}
