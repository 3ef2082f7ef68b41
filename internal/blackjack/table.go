package blackjack

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRoundInProgress      = errors.New("blackjack: a round is already in progress")
	ErrRoundNotActive       = errors.New("blackjack: round is not the active round")
	ErrNoParticipants       = errors.New("blackjack: no participants")
	ErrDuplicateParticipant = errors.New("blackjack: participant seated twice")
	ErrUnknownParticipant   = errors.New("blackjack: participant not in round")
	ErrNotActing            = errors.New("blackjack: participant has finished acting")
)

// Outcome is the settlement of one participant's hand against the dealer.
type Outcome string

const (
	Win  Outcome = "WIN"
	Loss Outcome = "LOSS"
	Push Outcome = "PUSH"
)

// Action is a participant decision during the action phase.
type Action int

const (
	Stand Action = iota
	Hit
)

func (a Action) String() string {
	if a == Hit {
		return "HIT"
	}
	return "STAND"
}

// PlayerStatus tracks where a participant is in the action phase.
type PlayerStatus string

const (
	StatusWaiting PlayerStatus = "WAITING"
	StatusActive  PlayerStatus = "ACTIVE"
	StatusStood   PlayerStatus = "STOOD"
	StatusBusted  PlayerStatus = "BUSTED"
)

// Decider supplies HIT/STAND choices for ResolveRound. Decide runs without
// the table lock held, so it may read RunningCount or TrueCount.
type Decider interface {
	Decide(participant string, hand Hand, dealerUp Card) Action
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(participant string, hand Hand, dealerUp Card) Action

func (f DeciderFunc) Decide(participant string, hand Hand, dealerUp Card) Action {
	return f(participant, hand, dealerUp)
}

// Seat is a participant joining a round with an already validated wager.
type Seat struct {
	ID    string
	Wager int
}

// Result is the final state of one participant after settlement.
type Result struct {
	ID        string
	Hand      Hand
	Total     int
	Wager     int
	Outcome   Outcome
	Delta     int
	Blackjack bool
}

// Round is the transient state of one deal. Its fields must only be
// mutated through the Round and Table methods.
type Round struct {
	ID         string
	Dealer     Hand
	Order      []string
	Hands      map[string]Hand
	Wagers     map[string]int
	Status     map[string]PlayerStatus
	Reshuffled bool

	table     *Table
	finished  bool
	resolving bool // owned by ResolveRound or PlayRound
}

// Table owns a shoe and its running count. Only one round may hold the
// shoe at a time.
type Table struct {
	mu         sync.Mutex
	shoe       *Shoe
	count      int
	rng        *rand.Rand
	active     *Round
	reshuffles int
}

// NewTable creates a table with a fresh shoe. A nil rng is seeded from the
// current time.
func NewTable(rng *rand.Rand) *Table {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Table{
		shoe: BuildShoe(rng),
		rng:  rng,
	}
}

// EnsureShoeCapacity rebuilds the shoe when it is at or below half capacity
// and resets the running count. It reports whether a reshuffle happened.
// Call it once per round, before dealing.
func (t *Table) EnsureShoeCapacity() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ensureShoeCapacity()
}

func (t *Table) ensureShoeCapacity() bool {
	if !t.shoe.NeedsReshuffle() {
		return false
	}
	t.shoe.rebuild()
	t.count = 0
	t.reshuffles++
	return true
}

// draw takes one card and updates the running count. The caller must hold
// t.mu. An empty shoe means round-size bookkeeping is broken.
func (t *Table) draw() Card {
	c, err := t.shoe.Draw()
	if err != nil {
		panic(fmt.Errorf("%w (reshuffle not performed before round)", err))
	}
	t.count = UpdateRunningCount(t.count, c)
	return c
}

// RunningCount returns the Hi-Lo count since the last reshuffle.
func (t *Table) RunningCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// TrueCount is the running count divided by the decks left in the shoe.
func (t *Table) TrueCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	decks := t.shoe.DecksRemaining()
	if decks == 0 {
		return 0
	}
	return t.count / decks
}

// Remaining returns the number of cards left in the shoe.
func (t *Table) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shoe.Remaining()
}

// Reshuffles returns how many times the shoe has been rebuilt.
func (t *Table) Reshuffles() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reshuffles
}

// DealInitial deals one card to each participant in order, twice, then two
// cards to the dealer. No participants is a no-op.
func (t *Table) DealInitial(participants []string) (Hand, map[string]Hand) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dealInitial(participants)
}

func (t *Table) dealInitial(participants []string) (Hand, map[string]Hand) {
	hands := make(map[string]Hand, len(participants))
	if len(participants) == 0 {
		return nil, hands
	}
	for pass := 0; pass < 2; pass++ {
		for _, p := range participants {
			hands[p] = append(hands[p], t.draw())
		}
	}
	dealer := Hand{t.draw(), t.draw()}
	return dealer, hands
}

// StartRound reshuffles if needed, deals the initial cards and makes the new
// round the table's active round.
func (t *Table) StartRound(seats []Seat) (*Round, error) {
	if len(seats) == 0 {
		return nil, ErrNoParticipants
	}

	order := make([]string, 0, len(seats))
	wagers := make(map[string]int, len(seats))
	for _, s := range seats {
		if _, dup := wagers[s.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, s.ID)
		}
		order = append(order, s.ID)
		wagers[s.ID] = s.Wager
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		return nil, ErrRoundInProgress
	}

	r := &Round{
		ID:         uuid.NewString(),
		Order:      order,
		Wagers:     wagers,
		Status:     make(map[string]PlayerStatus, len(order)),
		Reshuffled: t.ensureShoeCapacity(),
		table:      t,
	}
	r.Dealer, r.Hands = t.dealInitial(order)
	for _, id := range order {
		r.Status[id] = StatusWaiting
	}
	t.active = r
	return r, nil
}

// Active returns the round currently holding the shoe, if any.
func (t *Table) Active() *Round {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// DealerUp is the dealer's face-up card.
func (r *Round) DealerUp() Card {
	if len(r.Dealer) == 0 {
		return Card{}
	}
	return r.Dealer[0]
}

// Hit draws a card for the participant. A total over 21 busts them out of
// the action phase.
func (r *Round) Hit(id string) (Card, error) {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	if err := r.checkActing(id); err != nil {
		return Card{}, err
	}
	c := r.table.draw()
	r.Hands[id] = append(r.Hands[id], c)
	if r.Hands[id].IsBust() {
		r.Status[id] = StatusBusted
	}
	return c, nil
}

// Stand ends the participant's action phase.
func (r *Round) Stand(id string) error {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	if err := r.checkActing(id); err != nil {
		return err
	}
	r.Status[id] = StatusStood
	return nil
}

func (r *Round) checkActing(id string) error {
	if r.finished {
		return ErrRoundNotActive
	}
	st, ok := r.Status[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	if st == StatusStood || st == StatusBusted {
		return ErrNotActing
	}
	return nil
}

// StatusOf returns the participant's action-phase status.
func (r *Round) StatusOf(id string) PlayerStatus {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()
	return r.Status[id]
}

// Acting reports whether the participant may still hit or stand.
func (r *Round) Acting(id string) bool {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()
	return r.checkActing(id) == nil
}

// FinishRound stands everyone still acting, plays the dealer hand, settles
// every participant in seat order and releases the shoe.
func (t *Table) FinishRound(r *Round) ([]Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != r || r.finished || r.resolving {
		return nil, ErrRoundNotActive
	}
	for _, id := range r.Order {
		if st := r.Status[id]; st == StatusWaiting || st == StatusActive {
			r.Status[id] = StatusStood
		}
	}

	r.Dealer = t.playDealer(r.Dealer, r.Hands)
	dealerTotal := r.Dealer.Total()

	results := make([]Result, 0, len(r.Order))
	for _, id := range r.Order {
		results = append(results, settleHand(id, r.Hands[id], r.Wagers[id], dealerTotal))
	}

	r.finished = true
	t.active = nil
	return results, nil
}

// ResolveRound runs the action phase with decisions from d (nil stands
// everyone), plays the dealer and settles. Participants act in sorted ID
// order. It returns the final dealer hand and a result per participant.
// The table stays reserved until settlement, so no other round can deal
// from the shoe meanwhile.
func (t *Table) ResolveRound(dealer Hand, hands map[string]Hand, wagers map[string]int, d Decider) (Hand, map[string]Result, error) {
	if len(hands) == 0 {
		return dealer, make(map[string]Result), nil
	}

	t.mu.Lock()
	r, err := t.reserve()
	t.mu.Unlock()
	if err != nil {
		return dealer, nil, err
	}
	return t.resolveReserved(r, dealer, hands, wagers, d)
}

// PlayRound is a full non-interactive round: capacity check, deal, action
// phase and settlement.
func (t *Table) PlayRound(seats []Seat, d Decider) (Hand, map[string]Result, error) {
	if len(seats) == 0 {
		return nil, map[string]Result{}, nil
	}
	ids := make([]string, 0, len(seats))
	wagers := make(map[string]int, len(seats))
	for _, s := range seats {
		ids = append(ids, s.ID)
		wagers[s.ID] = s.Wager
	}

	t.mu.Lock()
	r, err := t.reserve()
	if err != nil {
		t.mu.Unlock()
		return nil, nil, err
	}
	r.Reshuffled = t.ensureShoeCapacity()
	dealer, hands := t.dealInitial(ids)
	t.mu.Unlock()

	return t.resolveReserved(r, dealer, hands, wagers, d)
}

// reserve marks the table as owned by a new round. The caller holds t.mu.
func (t *Table) reserve() (*Round, error) {
	if t.active != nil {
		return nil, ErrRoundInProgress
	}
	r := &Round{ID: uuid.NewString(), table: t, resolving: true}
	t.active = r
	return r, nil
}

func (t *Table) release(r *Round) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r.finished = true
	if t.active == r {
		t.active = nil
	}
}

func (t *Table) resolveReserved(r *Round, dealer Hand, hands map[string]Hand, wagers map[string]int, d Decider) (Hand, map[string]Result, error) {
	defer t.release(r)

	order := make([]string, 0, len(hands))
	for id := range hands {
		order = append(order, id)
	}
	sort.Strings(order)

	var up Card
	if len(dealer) > 0 {
		up = dealer[0]
	}

	final := make(map[string]Hand, len(hands))
	for _, id := range order {
		h := append(Hand(nil), hands[id]...)
		for d != nil && !h.IsBust() && d.Decide(id, h, up) == Hit {
			h = append(h, t.lockedDraw())
		}
		final[id] = h
	}

	dealer = t.lockedPlayDealer(append(Hand(nil), dealer...), final)
	dealerTotal := dealer.Total()
	results := make(map[string]Result, len(hands))
	for _, id := range order {
		results[id] = settleHand(id, final[id], wagers[id], dealerTotal)
	}
	return dealer, results, nil
}

func (t *Table) lockedDraw() Card {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draw()
}

func (t *Table) lockedPlayDealer(dealer Hand, hands map[string]Hand) Hand {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playDealer(dealer, hands)
}

func (t *Table) playDealer(dealer Hand, hands map[string]Hand) Hand {
	best := BestLiveTotal(hands)
	for DealerShouldDraw(dealer, best) {
		dealer = append(dealer, t.draw())
	}
	return dealer
}

// BestLiveTotal is the highest total among hands that have not busted, or 0.
func BestLiveTotal(hands map[string]Hand) int {
	best := 0
	for _, h := range hands {
		if total := h.Total(); total <= 21 && total > best {
			best = total
		}
	}
	return best
}

// DealerShouldDraw is the house rule: the dealer draws while under 17 and
// not already above the best live player total.
func DealerShouldDraw(dealer Hand, bestPlayerTotal int) bool {
	total := dealer.Total()
	return total < 17 && total <= bestPlayerTotal
}

// Settle compares a final player total with the dealer's and returns the
// outcome and the balance change for the wager.
func Settle(playerTotal, dealerTotal, wager int) (Outcome, int) {
	switch {
	case playerTotal > 21:
		return Loss, -wager
	case dealerTotal > 21 || playerTotal > dealerTotal:
		return Win, wager
	case playerTotal == dealerTotal:
		return Push, 0
	default:
		return Loss, -wager
	}
}

func settleHand(id string, h Hand, wager, dealerTotal int) Result {
	total := h.Total()
	outcome, delta := Settle(total, dealerTotal, wager)
	return Result{
		ID:        id,
		Hand:      h,
		Total:     total,
		Wager:     wager,
		Outcome:   outcome,
		Delta:     delta,
		Blackjack: h.IsBlackjack(),
	}
}
