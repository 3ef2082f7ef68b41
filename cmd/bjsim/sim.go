package main

import (
	"context"
	"fmt"
	"math/rand"

	"croupier/internal/blackjack"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

type simConfig struct {
	Rounds  int
	Players int
	Workers int
	Stand   int // players hit while their total is below this
	Bet     int
	Seed    int64
}

// Statistics accumulates settled hands from the player side.
type Statistics struct {
	Rounds      int
	Hands       int
	Wins        int
	Losses      int
	Pushes      int
	Naturals    int
	Busts       int
	DealerBusts int
	Wagered     int
	Net         int
	Reshuffles  int
}

func (s *Statistics) merge(o *Statistics) {
	s.Rounds += o.Rounds
	s.Hands += o.Hands
	s.Wins += o.Wins
	s.Losses += o.Losses
	s.Pushes += o.Pushes
	s.Naturals += o.Naturals
	s.Busts += o.Busts
	s.DealerBusts += o.DealerBusts
	s.Wagered += o.Wagered
	s.Net += o.Net
	s.Reshuffles += o.Reshuffles
}

func (s *Statistics) rate(n int) float64 {
	if s.Hands == 0 {
		return 0
	}
	return float64(n) / float64(s.Hands)
}

// HouseEdge is the house's win per unit wagered.
func (s *Statistics) HouseEdge() float64 {
	if s.Wagered == 0 {
		return 0
	}
	return -float64(s.Net) / float64(s.Wagered)
}

func thresholdDecider(stand int) blackjack.Decider {
	return blackjack.DeciderFunc(func(_ string, h blackjack.Hand, _ blackjack.Card) blackjack.Action {
		if h.Total() < stand {
			return blackjack.Hit
		}
		return blackjack.Stand
	})
}

// runSimulation splits the rounds across workers, each with its own table
// and a seed drawn from the master seed, so results only depend on cfg.
func runSimulation(ctx context.Context, cfg simConfig, logger *log.Logger) (*Statistics, error) {
	if cfg.Rounds < 0 || cfg.Players < 1 || cfg.Workers < 1 {
		return nil, fmt.Errorf("invalid simulation config: %+v", cfg)
	}

	master := rand.New(rand.NewSource(cfg.Seed))
	perWorker := cfg.Rounds / cfg.Workers
	remainder := cfg.Rounds % cfg.Workers

	parts := make([]*Statistics, cfg.Workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		rounds := perWorker
		if w < remainder {
			rounds++
		}
		workerSeed := master.Int63()

		g.Go(func() error {
			st, err := runWorker(ctx, w, rounds, workerSeed, cfg, logger)
			parts[w] = st
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &Statistics{}
	for _, p := range parts {
		total.merge(p)
	}
	return total, nil
}

func runWorker(ctx context.Context, id, rounds int, seed int64, cfg simConfig, logger *log.Logger) (*Statistics, error) {
	table := blackjack.NewTable(rand.New(rand.NewSource(seed)))
	decider := thresholdDecider(cfg.Stand)

	seats := make([]blackjack.Seat, cfg.Players)
	for i := range seats {
		seats[i] = blackjack.Seat{ID: fmt.Sprintf("p%d", i+1), Wager: cfg.Bet}
	}

	st := &Statistics{}
	for r := 0; r < rounds; r++ {
		if r%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return st, err
			}
		}

		dealer, results, err := table.PlayRound(seats, decider)
		if err != nil {
			return st, err
		}
		st.Rounds++
		if dealer.IsBust() {
			st.DealerBusts++
		}
		for _, res := range results {
			st.Hands++
			st.Wagered += res.Wager
			st.Net += res.Delta
			if res.Blackjack {
				st.Naturals++
			}
			if res.Total > 21 {
				st.Busts++
			}
			switch res.Outcome {
			case blackjack.Win:
				st.Wins++
			case blackjack.Loss:
				st.Losses++
			case blackjack.Push:
				st.Pushes++
			}
		}

		if logger != nil && (r+1)%25000 == 0 {
			logger.Debug("progress", "worker", id, "rounds", r+1, "count", table.RunningCount(), "remaining", table.Remaining())
		}
	}
	st.Reshuffles = table.Reshuffles()
	return st, nil
}
