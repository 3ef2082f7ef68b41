package blackjack

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

type GameState string

const (
	StateIdle    GameState = "IDLE"
	StateLobby   GameState = "LOBBY"
	StatePlaying GameState = "PLAYING"
)

var (
	ErrNotYourTurn   = errors.New("it's not your turn")
	ErrNotPlaying    = errors.New("no round in progress")
	ErrNotLobby      = errors.New("no lobby is open")
	ErrAlreadySeated = errors.New("you already joined")
	ErrTableFull     = errors.New("lobby is full")
	ErrNotHost       = errors.New("only the host can start early")
)

// JoinResult says where a joining player ended up.
type JoinResult int

const (
	Opened JoinResult = iota // a new lobby was opened with the player as host
	Seated                   // seated in the open lobby
	Queued                   // a round is running; seated in the next lobby
)

// Player is a seated or queued participant.
type Player struct {
	UserID   string
	Username string
	Bet      int
}

// Escrow holds wagers for the length of a round. Reserve debits every seat
// with a wager and returns the IDs it could not debit; the others stay
// debited. Refund credits the seats back when the round never got dealt.
type Escrow interface {
	Reserve(guildID string, seats []Seat) (short []string, err error)
	Refund(guildID string, seats []Seat) error
}

// GameConfig holds the table limits and deadlines. A nil Escrow plays for
// nothing.
type GameConfig struct {
	MaxPlayers   int
	LobbyTimeout time.Duration
	TurnTimeout  time.Duration
	Clock        quartz.Clock
	Escrow       Escrow
}

func (c GameConfig) withDefaults() GameConfig {
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = 5
	}
	if c.LobbyTimeout <= 0 {
		c.LobbyTimeout = 30 * time.Second
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = quartz.NewReal()
	}
	return c
}

// Game is the shared blackjack table of one guild. It cycles
// Idle -> Lobby -> Playing -> Idle, queueing joins that arrive while a round
// is being played.
//
// Callbacks run with the game locked and must not call back into it.
type Game struct {
	mu sync.Mutex

	GuildID     string
	ChannelID   string
	MessageID   string
	HostID      string
	BaseBet     int
	State       GameState
	Players     []*Player
	Queue       []*Player
	Dropped     []*Player // unseated at start for not covering their bet
	Round       *Round
	CurrentTurn int
	StartTime   time.Time
	TurnEnds    time.Time

	// OnLobby fires when a lobby opens from the queue rather than a command.
	OnLobby func(g *Game)
	// OnUpdate fires after every lobby or turn change.
	OnUpdate func(g *Game)
	// OnFinish fires once per round with the settled results.
	OnFinish func(g *Game, results []Result)

	table      *Table
	cfg        GameConfig
	lobbyTimer *quartz.Timer
	turnTimer  *quartz.Timer
	turnSeq    int
	lobbySeq   int
}

// NewGame creates an idle game dealing from table.
func NewGame(guildID string, table *Table, cfg GameConfig) *Game {
	return &Game{
		GuildID: guildID,
		State:   StateIdle,
		table:   table,
		cfg:     cfg.withDefaults(),
	}
}

// Table returns the table the game deals from.
func (g *Game) Table() *Table {
	return g.table
}

// MaxPlayers is the seat limit of a lobby.
func (g *Game) MaxPlayers() int {
	return g.cfg.MaxPlayers
}

// Lock and Unlock expose the game mutex so renderers can read a consistent
// view outside of callbacks.
func (g *Game) Lock()   { g.mu.Lock() }
func (g *Game) Unlock() { g.mu.Unlock() }

// SetMessage records where the game is displayed.
func (g *Game) SetMessage(channelID, messageID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ChannelID = channelID
	g.MessageID = messageID
}

// Open seats p, opening a lobby with p as host and p.Bet as the base bet
// when the table is idle.
func (g *Game) Open(p *Player) (JoinResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.State == StateIdle {
		g.openLobby([]*Player{p})
		return Opened, nil
	}
	return g.join(p)
}

// Join seats p in the open lobby, or queues p while a round is played.
func (g *Game) Join(p *Player) (JoinResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.State == StateIdle {
		return 0, ErrNotLobby
	}
	return g.join(p)
}

func (g *Game) join(p *Player) (JoinResult, error) {
	if g.isSeated(p.UserID) {
		return 0, ErrAlreadySeated
	}
	if g.State == StatePlaying {
		g.Queue = append(g.Queue, p)
		return Queued, nil
	}
	if len(g.Players) >= g.cfg.MaxPlayers {
		return 0, ErrTableFull
	}
	g.Players = append(g.Players, p)
	g.notify()
	return Seated, nil
}

func (g *Game) isSeated(userID string) bool {
	for _, p := range g.Players {
		if p.UserID == userID {
			return true
		}
	}
	for _, p := range g.Queue {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (g *Game) openLobby(players []*Player) {
	g.State = StateLobby
	g.Players = players
	g.HostID = players[0].UserID
	g.BaseBet = players[0].Bet
	g.Dropped = nil
	g.Round = nil
	g.CurrentTurn = 0
	g.StartTime = g.cfg.Clock.Now().Add(g.cfg.LobbyTimeout)

	g.lobbySeq++
	seq := g.lobbySeq
	g.lobbyTimer = g.cfg.Clock.AfterFunc(g.cfg.LobbyTimeout, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.State != StateLobby || seq != g.lobbySeq {
			return
		}
		if err := g.start(); err != nil {
			log.Errorf("[BLACKJACK ERROR] Lobby in guild %s could not start: %v", g.GuildID, err)
		}
	}, "blackjack", "lobby")
}

// Start begins the round early. Only the host may do so.
func (g *Game) Start(userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.State != StateLobby {
		return ErrNotLobby
	}
	if userID != g.HostID {
		return ErrNotHost
	}
	if g.lobbyTimer != nil {
		g.lobbyTimer.Stop()
	}
	g.lobbySeq++
	return g.start()
}

// start takes the wagers and deals. On any error the lobby is closed so
// the game is never left waiting on a lobby without a timer.
func (g *Game) start() error {
	seats := g.seats()
	if g.cfg.Escrow != nil {
		short, err := g.cfg.Escrow.Reserve(g.GuildID, seats)
		if err != nil {
			g.abort()
			return fmt.Errorf("reserve wagers: %w", err)
		}
		if len(short) > 0 {
			g.unseat(short)
			seats = g.seats()
		}
	}
	if len(seats) == 0 {
		g.abort()
		return ErrNoParticipants
	}

	r, err := g.table.StartRound(seats)
	if err != nil {
		if g.cfg.Escrow != nil {
			if rerr := g.cfg.Escrow.Refund(g.GuildID, seats); rerr != nil {
				err = errors.Join(err, fmt.Errorf("refund wagers: %w", rerr))
			}
		}
		g.abort()
		return err
	}

	g.State = StatePlaying
	g.Round = r
	g.CurrentTurn = -1
	g.nextTurn()
	return nil
}

func (g *Game) seats() []Seat {
	seats := make([]Seat, 0, len(g.Players))
	for _, p := range g.Players {
		seats = append(seats, Seat{ID: p.UserID, Wager: p.Bet})
	}
	return seats
}

// unseat moves the given players from the lobby to Dropped.
func (g *Game) unseat(ids []string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := g.Players[:0]
	for _, p := range g.Players {
		if drop[p.UserID] {
			g.Dropped = append(g.Dropped, p)
		} else {
			kept = append(kept, p)
		}
	}
	g.Players = kept
	if len(kept) > 0 && drop[g.HostID] {
		g.HostID = kept[0].UserID
	}
}

// abort closes the lobby without dealing.
func (g *Game) abort() {
	if g.lobbyTimer != nil {
		g.lobbyTimer.Stop()
	}
	g.lobbySeq++
	g.State = StateIdle
	g.Players = nil
	g.Round = nil
	g.notify()
}

// Current returns the player whose turn it is, or nil.
func (g *Game) Current() *Player {
	if g.State != StatePlaying || g.CurrentTurn < 0 || g.CurrentTurn >= len(g.Players) {
		return nil
	}
	return g.Players[g.CurrentTurn]
}

// Hit draws a card for the current player.
func (g *Game) Hit(userID string) (Card, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkTurn(userID); err != nil {
		return Card{}, err
	}
	c, err := g.Round.Hit(userID)
	if err != nil {
		return Card{}, err
	}
	if g.Round.StatusOf(userID) == StatusBusted {
		g.nextTurn()
	} else {
		g.armTurnTimer()
		g.notify()
	}
	return c, nil
}

// Stand ends the current player's turn.
func (g *Game) Stand(userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkTurn(userID); err != nil {
		return err
	}
	if err := g.Round.Stand(userID); err != nil {
		return err
	}
	g.nextTurn()
	return nil
}

func (g *Game) checkTurn(userID string) error {
	if g.State != StatePlaying {
		return ErrNotPlaying
	}
	if p := g.Current(); p == nil || p.UserID != userID {
		return ErrNotYourTurn
	}
	return nil
}

// nextTurn moves to the next player still able to act, or finishes the
// round when nobody is left.
func (g *Game) nextTurn() {
	for g.CurrentTurn++; g.CurrentTurn < len(g.Players); g.CurrentTurn++ {
		id := g.Players[g.CurrentTurn].UserID
		if g.Round.Acting(id) {
			g.Round.setStatus(id, StatusActive)
			g.armTurnTimer()
			g.notify()
			return
		}
	}
	g.finish()
}

func (g *Game) armTurnTimer() {
	if g.turnTimer != nil {
		g.turnTimer.Stop()
	}
	g.turnSeq++
	seq := g.turnSeq
	g.TurnEnds = g.cfg.Clock.Now().Add(g.cfg.TurnTimeout)
	g.turnTimer = g.cfg.Clock.AfterFunc(g.cfg.TurnTimeout, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.State != StatePlaying || seq != g.turnSeq {
			return
		}
		// No decision in time counts as a stand.
		if p := g.Current(); p != nil {
			_ = g.Round.Stand(p.UserID)
		}
		g.nextTurn()
	}, "blackjack", "turn")
}

func (g *Game) finish() {
	if g.turnTimer != nil {
		g.turnTimer.Stop()
	}
	g.turnSeq++

	results, err := g.table.FinishRound(g.Round)
	if err != nil {
		// The round was already settled; nothing left to do.
		return
	}
	if g.OnFinish != nil {
		g.OnFinish(g, results)
	}

	g.State = StateIdle
	g.Players = nil
	if len(g.Queue) > 0 {
		queued := g.Queue
		g.Queue = nil
		if len(queued) > g.cfg.MaxPlayers {
			g.Queue = queued[g.cfg.MaxPlayers:]
			queued = queued[:g.cfg.MaxPlayers]
		}
		g.openLobby(queued)
		if g.OnLobby != nil {
			g.OnLobby(g)
		}
	}
}

// Leave removes a player from the lobby or queue. The host leaving an
// otherwise empty lobby closes it.
func (g *Game) Leave(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, p := range g.Queue {
		if p.UserID == userID {
			g.Queue = append(g.Queue[:i], g.Queue[i+1:]...)
			return true
		}
	}
	if g.State != StateLobby {
		return false
	}
	for i, p := range g.Players {
		if p.UserID != userID {
			continue
		}
		g.Players = append(g.Players[:i], g.Players[i+1:]...)
		if len(g.Players) == 0 {
			if g.lobbyTimer != nil {
				g.lobbyTimer.Stop()
			}
			g.lobbySeq++
			g.State = StateIdle
		} else if g.HostID == userID {
			g.HostID = g.Players[0].UserID
		}
		g.notify()
		return true
	}
	return false
}

func (g *Game) notify() {
	if g.OnUpdate != nil {
		g.OnUpdate(g)
	}
}

func (r *Round) setStatus(id string, st PlayerStatus) {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()
	r.Status[id] = st
}
