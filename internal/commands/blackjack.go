package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"croupier/internal/blackjack"
	"croupier/internal/database"
	"croupier/internal/events"
	"croupier/internal/voice"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

var BlackjackCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "bj",
		Description: "Play Blackjack",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "play",
				Description: "Open or join this server's blackjack table",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "bet",
						Description: "Amount to bet (default 0)",
						Required:    false,
					},
				},
			},
			{
				Name:        "stats",
				Description: "Blackjack record",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "User to show (default you)",
						Required:    false,
					},
				},
			},
			{
				Name:        "shoe",
				Description: "Show the shoe and running count (Admin only)",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	},
}

// GameConfig applies to every table created after it is set.
var GameConfig blackjack.GameConfig

// bjTable is a guild's game plus the front-end state that goes with it.
// announced is guarded by the game lock.
type bjTable struct {
	game      *blackjack.Game
	announced string
}

var (
	tables   = make(map[string]*bjTable)
	tablesMu sync.Mutex
)

func getTable(s *discordgo.Session, guildID string) *bjTable {
	tablesMu.Lock()
	defer tablesMu.Unlock()

	if t, ok := tables[guildID]; ok {
		return t
	}

	cfg := GameConfig
	if cfg.Escrow == nil {
		cfg.Escrow = dbEscrow{}
	}
	t := &bjTable{game: blackjack.NewGame(guildID, blackjack.NewTable(nil), cfg)}
	t.game.OnUpdate = func(g *blackjack.Game) { t.onUpdate(s, g) }
	t.game.OnFinish = func(g *blackjack.Game, results []blackjack.Result) { t.onFinish(s, g, results) }
	t.game.OnLobby = func(g *blackjack.Game) { t.onLobby(s, g) }
	tables[guildID] = t
	log.Debugf("[BLACKJACK] Created table for guild %s", guildID)
	return t
}

// dbEscrow takes wagers from guild balances when a round starts. Payouts
// happen in onFinish through SettleBlackjackRound.
type dbEscrow struct{}

func (dbEscrow) Reserve(guildID string, seats []blackjack.Seat) ([]string, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	short, err := DB.ReserveWagers(guildID, stakes(seats))
	if err != nil {
		return nil, err
	}
	for _, id := range short {
		log.Infof("[BLACKJACK ESCROW] Guild %s | %s can no longer cover the bet, unseated", guildID, id)
	}
	return short, nil
}

func (dbEscrow) Refund(guildID string, seats []blackjack.Seat) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	return DB.RefundWagers(guildID, stakes(seats))
}

func stakes(seats []blackjack.Seat) []database.Stake {
	out := make([]database.Stake, 0, len(seats))
	for _, st := range seats {
		out = append(out, database.Stake{UserID: st.ID, Amount: st.Wager})
	}
	return out
}

// ForEachTable calls fn with the shoe of every guild that has played.
func ForEachTable(fn func(guildID string, t *blackjack.Table)) {
	tablesMu.Lock()
	snapshot := make(map[string]*blackjack.Table, len(tables))
	for id, t := range tables {
		snapshot[id] = t.game.Table()
	}
	tablesMu.Unlock()

	for id, t := range snapshot {
		fn(id, t)
	}
}

func HandleBlackjackCommand(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		handlePlay(s, i, 0)
		return
	}

	subcmd := data.Options[0]
	switch subcmd.Name {
	case "play":
		bet := 0
		if len(subcmd.Options) > 0 {
			bet = int(subcmd.Options[0].IntValue())
		}
		handlePlay(s, i, bet)
	case "stats":
		handleStats(s, i, subcmd.Options)
	case "shoe":
		handleShoe(s, i)
	}
}

// handlePlay opens a lobby, joins the open one or queues for the next one.
// Joiners always play at the table's base bet.
func handlePlay(s *discordgo.Session, i *discordgo.InteractionCreate, bet int) {
	user := i.Member.User
	if bet < 0 {
		log.Warnf("[BLACKJACK ERROR] User %s: Bet cannot be negative (%d)", user.ID, bet)
		respondError(s, i, "Bet cannot be negative.")
		return
	}

	t := getTable(s, i.GuildID)
	g := t.game

	g.Lock()
	if g.State != blackjack.StateIdle {
		bet = g.BaseBet
	}
	g.Unlock()

	if !canCover(s, i, bet) {
		return
	}

	res, err := g.Open(&blackjack.Player{UserID: user.ID, Username: user.Username, Bet: bet})
	if err != nil {
		respondError(s, i, errorText(err))
		return
	}

	switch res {
	case blackjack.Opened:
		g.Lock()
		embed := lobbyEmbed(g)
		g.Unlock()

		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds:     []*discordgo.MessageEmbed{embed},
				Components: lobbyButtons(),
			},
		})
		if err != nil {
			log.Errorf("[BLACKJACK ERROR] Failed to post lobby in guild %s: %v", i.GuildID, err)
			g.Leave(user.ID)
			return
		}
		msg, err := s.InteractionResponse(i.Interaction)
		if err != nil {
			log.Errorf("[BLACKJACK ERROR] Failed to fetch lobby message in guild %s: %v", i.GuildID, err)
			return
		}
		g.SetMessage(msg.ChannelID, msg.ID)
		log.Infof("[BLACKJACK LOBBY] Created by %s | Guild: %s | Bet: %d", user.Username, i.GuildID, bet)
	case blackjack.Seated:
		log.Infof("[BLACKJACK JOIN] %s joined the table in guild %s", user.Username, i.GuildID)
		respondEphemeral(s, i, fmt.Sprintf("✅ You joined the table for **$%d**.", bet))
	case blackjack.Queued:
		log.Infof("[BLACKJACK QUEUE] %s queued for the next round in guild %s", user.Username, i.GuildID)
		respondEphemeral(s, i, "⏳ A round is in progress. You'll be seated in the next lobby.")
	}
}

// canCover rejects a wager the user cannot pay, responding to the
// interaction when it does.
func canCover(s *discordgo.Session, i *discordgo.InteractionCreate, bet int) bool {
	if bet == 0 {
		return true
	}
	if DB == nil {
		respondError(s, i, "Database not initialized.")
		return false
	}
	bal, err := DB.GetBalance(i.GuildID, i.Member.User.ID)
	if err != nil {
		log.Errorf("[BLACKJACK ERROR] GetBalance for %s: %v", i.Member.User.ID, err)
		respondError(s, i, "Database error.")
		return false
	}
	if bal < bet {
		respondError(s, i, fmt.Sprintf("Insufficient funds! The bet is $%d and you have $%d.", bet, bal))
		return false
	}
	return true
}

func HandleGameComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	if strings.HasPrefix(customID, "game_bj_play_again") {
		handlePlay(s, i, parsePlayAgain(customID))
		return
	}

	t := getTable(s, i.GuildID)
	g := t.game

	g.Lock()
	stale := i.Message == nil || i.Message.ID != g.MessageID
	g.Unlock()
	if stale {
		respondEphemeral(s, i, "This table has moved on.")
		return
	}

	user := i.Member.User
	var err error
	switch customID {
	case "game_bj_join":
		g.Lock()
		bet := g.BaseBet
		g.Unlock()
		if !canCover(s, i, bet) {
			return
		}
		var res blackjack.JoinResult
		res, err = g.Join(&blackjack.Player{UserID: user.ID, Username: user.Username, Bet: bet})
		if err == nil && res == blackjack.Queued {
			respondEphemeral(s, i, "⏳ A round is in progress. You'll be seated in the next lobby.")
			return
		}
		if err == nil {
			log.Infof("[BLACKJACK JOIN] %s joined game %s", user.Username, i.Message.ID)
		}
	case "game_bj_leave":
		if !g.Leave(user.ID) {
			err = errors.New("you're not in this lobby")
		}
	case "game_bj_start":
		err = g.Start(user.ID)
	case "game_bj_hit":
		var c blackjack.Card
		c, err = g.Hit(user.ID)
		if err == nil {
			log.Infof("[BLACKJACK ACTION] %s HIT | Card: %s", user.Username, c)
		}
	case "game_bj_stand":
		err = g.Stand(user.ID)
		if err == nil {
			log.Infof("[BLACKJACK ACTION] %s STOOD", user.Username)
		}
	default:
		return
	}

	if err != nil {
		respondError(s, i, errorText(err))
		return
	}

	// The message was already edited by the game callbacks.
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

func parsePlayAgain(customID string) int {
	_, arg, ok := strings.Cut(customID, ":")
	if !ok {
		return 0
	}
	bet, err := strconv.Atoi(arg)
	if err != nil || bet < 0 {
		return 0
	}
	return bet
}

// errorText turns an engine error into a sentence for the user.
func errorText(err error) string {
	msg := err.Error()
	if msg == "" {
		return "Something went wrong."
	}
	r := []rune(msg)
	r[0] = unicode.ToUpper(r[0])
	return string(r) + "."
}

// Game callbacks. They run with the game locked.

func (t *bjTable) onUpdate(s *discordgo.Session, g *blackjack.Game) {
	if g.MessageID == "" {
		return
	}

	var embed *discordgo.MessageEmbed
	var components []discordgo.MessageComponent
	switch g.State {
	case blackjack.StateLobby:
		embed = lobbyEmbed(g)
		components = lobbyButtons()
	case blackjack.StatePlaying:
		t.announceShuffle(g)
		embed = tableEmbed(g)
		components = actionButtons()
	default:
		embed = &discordgo.MessageEmbed{Title: "Blackjack Lobby", Description: "Lobby closed.", Color: 0x99AAB5}
		if len(g.Dropped) > 0 {
			embed.Description = "Lobby closed. Nobody could cover the bet."
		}
	}
	editGameMessage(s, g.ChannelID, g.MessageID, embed, components)
}

func (t *bjTable) announceShuffle(g *blackjack.Game) {
	if g.Round == nil || !g.Round.Reshuffled || t.announced == g.Round.ID {
		return
	}
	t.announced = g.Round.ID
	log.Infof("[BLACKJACK SHUFFLE] Guild %s | New shoe of %d cards", g.GuildID, g.Table().Remaining())

	if Voice == nil {
		return
	}
	if err := Voice.PlayForUser(g.GuildID, g.HostID, voice.ShuffleSound); err != nil {
		log.Debugf("[BLACKJACK SHUFFLE] No shuffle sound: %v", err)
	}
}

func (t *bjTable) onFinish(s *discordgo.Session, g *blackjack.Game, results []blackjack.Result) {
	dealer := g.Round.Dealer
	names := playerNames(g.Players)

	if DB != nil {
		err := DB.SettleBlackjackRound(g.GuildID, g.Round.ID, time.Now(), toRoundResults(results, dealer.Total()))
		if err != nil {
			log.Errorf("[BLACKJACK ERROR] Settling round %s failed: %v", g.Round.ID, err)
		}
	}

	editGameMessage(s, g.ChannelID, g.MessageID, resultsEmbed(dealer, results, names), playAgainButtons(g.BaseBet))

	summary := make([]string, 0, len(results))
	for _, r := range results {
		summary = append(summary, fmt.Sprintf("%s=%s(%+d)", names[r.ID], r.Outcome, r.Delta))
	}
	log.Infof("[BLACKJACK FINISH] Game %s | Dealer: %d | Results: %s", g.MessageID, dealer.Total(), strings.Join(summary, ", "))

	go Audit.OnRoundSettled(events.RoundSummary{
		GuildID:      g.GuildID,
		ChannelID:    g.ChannelID,
		RoundID:      g.Round.ID,
		Dealer:       dealer,
		Results:      results,
		Names:        names,
		Reshuffled:   g.Round.Reshuffled,
		Remaining:    g.Table().Remaining(),
		RunningCount: g.Table().RunningCount(),
		At:           time.Now(),
	})
}

// onLobby posts a fresh lobby for the players queued during the last round.
func (t *bjTable) onLobby(s *discordgo.Session, g *blackjack.Game) {
	mentions := make([]string, 0, len(g.Players))
	for _, p := range g.Players {
		mentions = append(mentions, "<@"+p.UserID+">")
	}

	msg, err := s.ChannelMessageSendComplex(g.ChannelID, &discordgo.MessageSend{
		Content:    strings.Join(mentions, " ") + " your seats are ready.",
		Embeds:     []*discordgo.MessageEmbed{lobbyEmbed(g)},
		Components: lobbyButtons(),
	})
	if err != nil {
		log.Errorf("[BLACKJACK ERROR] Failed to post queued lobby in %s: %v", g.ChannelID, err)
		return
	}
	g.MessageID = msg.ID
	log.Infof("[BLACKJACK LOBBY] Opened from queue in guild %s with %d players", g.GuildID, len(g.Players))
}

func editGameMessage(s *discordgo.Session, channelID, messageID string, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	embeds := []*discordgo.MessageEmbed{embed}
	_, err := s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Embeds:     &embeds,
		Components: &components,
	})
	if err != nil {
		log.Errorf("[BLACKJACK ERROR] Failed to update message %s: %v", messageID, err)
	}
}

func handleStats(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if DB == nil {
		respondError(s, i, "Database not initialized.")
		return
	}
	user := i.Member.User
	if len(options) > 0 {
		user = options[0].UserValue(s)
	}

	stats, err := DB.GetBlackjackStats(i.GuildID, user.ID)
	if err != nil {
		log.Errorf("[BLACKJACK ERROR] GetBlackjackStats for %s: %v", user.ID, err)
		respondError(s, i, "Failed to fetch stats.")
		return
	}
	respondEmbed(s, i, statsEmbed(user.Username, stats), false)
}

func handleShoe(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !hasPermission(i.Member.User.ID, "games.bj.shoe") {
		respondError(s, i, "You do not have permission to use this command.")
		return
	}
	tb := getTable(s, i.GuildID).game.Table()
	respondEmbed(s, i, shoeEmbed(tb.Remaining(), tb.RunningCount(), tb.TrueCount(), tb.Reshuffles()), true)
}

// Rendering.

func lobbyEmbed(g *blackjack.Game) *discordgo.MessageEmbed {
	playersList := make([]string, 0, len(g.Players))
	for _, p := range g.Players {
		line := "- " + p.Username
		if p.UserID == g.HostID {
			line += " 👑"
		}
		playersList = append(playersList, line)
	}

	desc := fmt.Sprintf("Waiting for players... Starts <t:%d:R>\n\n**Players (%d/%d):**\n%s",
		g.StartTime.Unix(), len(g.Players), g.MaxPlayers(), strings.Join(playersList, "\n"))
	if len(g.Queue) > 0 {
		desc += fmt.Sprintf("\n\n*%d waiting for the next round*", len(g.Queue))
	}

	return &discordgo.MessageEmbed{
		Title:       "Blackjack Lobby",
		Description: desc,
		Color:       0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Bet", Value: fmt.Sprintf("$%d", g.BaseBet), Inline: true},
		},
	}
}

func tableEmbed(g *blackjack.Game) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Blackjack",
		Color: 0x00FF00,
	}
	if g.Round == nil {
		return embed
	}

	if p := g.Current(); p != nil {
		embed.Description = fmt.Sprintf("<@%s> to act, auto-stand <t:%d:R>", p.UserID, g.TurnEnds.Unix())
	}

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  "Dealer's Hand",
		Value: fmt.Sprintf("`%s` `??`", g.Round.DealerUp()),
	})
	if len(g.Dropped) > 0 {
		names := make([]string, 0, len(g.Dropped))
		for _, p := range g.Dropped {
			names = append(names, p.Username)
		}
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Unseated, could not cover the bet: " + strings.Join(names, ", ")}
	}

	for _, p := range g.Players {
		hand := g.Round.Hands[p.UserID]
		status := ""
		switch g.Round.Status[p.UserID] {
		case blackjack.StatusActive:
			status = "⬅️ **TURN**"
		case blackjack.StatusBusted:
			status = "💥 **BUST**"
		case blackjack.StatusStood:
			status = "⏹️ **STOOD**"
		}

		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  strings.TrimSpace(fmt.Sprintf("%s's Hand (%d) %s", p.Username, hand.Total(), status)),
			Value: hand.String(),
		})
	}
	return embed
}

func resultsEmbed(dealer blackjack.Hand, results []blackjack.Result, names map[string]string) *discordgo.MessageEmbed {
	dealerTotal := dealer.Total()

	var sb strings.Builder
	sb.WriteString("**Dealer Finished!**")
	for _, r := range results {
		fmt.Fprintf(&sb, "\n- %s: %s", names[r.ID], outcomeText(r, dealerTotal))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Blackjack - Results",
		Description: sb.String(),
		Color:       0x00FF00,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Dealer's Hand", Value: fmt.Sprintf("(%d) %s", dealerTotal, dealer)},
		},
	}
	for _, r := range results {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("%s's Hand (%d)", names[r.ID], r.Total),
			Value:  r.Hand.String(),
			Inline: true,
		})
	}
	return embed
}

func outcomeText(r blackjack.Result, dealerTotal int) string {
	var text string
	switch {
	case r.Outcome == blackjack.Win && r.Blackjack:
		text = "Blackjack! 🃏"
	case r.Outcome == blackjack.Win && dealerTotal > 21:
		text = "Won (Dealer Bust) 🎉"
	case r.Outcome == blackjack.Win:
		text = "Won 🎉"
	case r.Outcome == blackjack.Push:
		text = "Push 🤝"
	case r.Total > 21:
		text = "Busted ❌"
	default:
		text = "Lost ❌"
	}
	if r.Wager > 0 {
		text += fmt.Sprintf(" (%+d)", r.Delta)
	}
	return text
}

func statsEmbed(username string, st database.BlackjackStats) *discordgo.MessageEmbed {
	rate := "n/a"
	if played := st.Played(); played > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(st.Wins)*100/float64(played))
	}
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🃏 %s's Blackjack Record", username),
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Played", Value: strconv.Itoa(st.Played()), Inline: true},
			{Name: "W / L / P", Value: fmt.Sprintf("%d / %d / %d", st.Wins, st.Losses, st.Pushes), Inline: true},
			{Name: "Win Rate", Value: rate, Inline: true},
			{Name: "Net", Value: fmt.Sprintf("%+d", st.Net), Inline: true},
		},
	}
}

func shoeEmbed(remaining, running, trueCount, reshuffles int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "👞 Shoe",
		Color: 0x99AAB5,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Cards Left", Value: fmt.Sprintf("%d / %d", remaining, blackjack.ShoeSize), Inline: true},
			{Name: "Decks Left", Value: fmt.Sprintf("%.1f", float64(remaining)/52), Inline: true},
			{Name: "Running Count", Value: fmt.Sprintf("%+d", running), Inline: true},
			{Name: "True Count", Value: fmt.Sprintf("%+d", trueCount), Inline: true},
			{Name: "Reshuffles", Value: strconv.Itoa(reshuffles), Inline: true},
		},
	}
}

func playerNames(players []*blackjack.Player) map[string]string {
	names := make(map[string]string, len(players))
	for _, p := range players {
		names[p.UserID] = p.Username
	}
	return names
}

func toRoundResults(results []blackjack.Result, dealerTotal int) []database.RoundResult {
	out := make([]database.RoundResult, 0, len(results))
	for _, r := range results {
		out = append(out, database.RoundResult{
			UserID:      r.ID,
			Wager:       r.Wager,
			Outcome:     string(r.Outcome),
			Delta:       r.Delta,
			PlayerTotal: r.Total,
			DealerTotal: dealerTotal,
		})
	}
	return out
}

func lobbyButtons() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Join", Style: discordgo.PrimaryButton, CustomID: "game_bj_join"},
				discordgo.Button{Label: "Start", Style: discordgo.SuccessButton, CustomID: "game_bj_start"},
				discordgo.Button{Label: "Leave", Style: discordgo.DangerButton, CustomID: "game_bj_leave"},
			},
		},
	}
}

func actionButtons() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Hit", Style: discordgo.PrimaryButton, CustomID: "game_bj_hit"},
				discordgo.Button{Label: "Stand", Style: discordgo.SecondaryButton, CustomID: "game_bj_stand"},
			},
		},
	}
}

func playAgainButtons(bet int) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Play Again", Style: discordgo.SuccessButton, CustomID: fmt.Sprintf("game_bj_play_again:%d", bet)},
			},
		},
	}
}
