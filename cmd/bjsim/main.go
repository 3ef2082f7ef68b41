package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
)

type CLI struct {
	Rounds  int   `default:"100000" help:"Number of rounds to simulate"`
	Players int   `default:"3" help:"Seats per round"`
	Workers int   `default:"0" help:"Worker goroutines (0 for GOMAXPROCS)"`
	Stand   int   `default:"17" help:"Players hit while their total is below this"`
	Bet     int   `default:"10" help:"Wager per seat"`
	Seed    int64 `default:"0" help:"RNG seed (0 for random)"`
	Verbose bool  `short:"v" help:"Verbose logging"`
}

func (c *CLI) Validate() error {
	if c.Rounds < 0 {
		return fmt.Errorf("--rounds must not be negative")
	}
	if c.Players < 1 || c.Players > 7 {
		return fmt.Errorf("--players must be between 1 and 7")
	}
	if c.Bet < 0 {
		return fmt.Errorf("--bet must not be negative")
	}
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("bjsim"),
		kong.Description("Simulate blackjack rounds against the house dealer rule."))

	if cli.Seed == 0 {
		cli.Seed = time.Now().UnixNano()
	}
	if cli.Workers <= 0 {
		cli.Workers = runtime.GOMAXPROCS(0)
	}

	level := log.WarnLevel
	if cli.Verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: level, ReportTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Simulating %d rounds x %d players, hit below %d (seed: %d, workers: %d)\n",
		cli.Rounds, cli.Players, cli.Stand, cli.Seed, cli.Workers)

	start := time.Now()
	stats, err := runSimulation(ctx, simConfig{
		Rounds:  cli.Rounds,
		Players: cli.Players,
		Workers: cli.Workers,
		Stand:   cli.Stand,
		Bet:     cli.Bet,
		Seed:    cli.Seed,
	}, logger)
	if err != nil {
		logger.Error("simulation failed", "err", err)
		kctx.Exit(1)
	}
	printResults(stats, time.Since(start))
}

func printResults(s *Statistics, d time.Duration) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Rounds\t%d\n", s.Rounds)
	fmt.Fprintf(w, "Hands\t%d\n", s.Hands)
	fmt.Fprintf(w, "Win\t%.2f%%\n", s.rate(s.Wins)*100)
	fmt.Fprintf(w, "Loss\t%.2f%%\n", s.rate(s.Losses)*100)
	fmt.Fprintf(w, "Push\t%.2f%%\n", s.rate(s.Pushes)*100)
	fmt.Fprintf(w, "Player busts\t%.2f%%\n", s.rate(s.Busts)*100)
	fmt.Fprintf(w, "Naturals\t%.2f%%\n", s.rate(s.Naturals)*100)
	if s.Rounds > 0 {
		fmt.Fprintf(w, "Dealer busts\t%.2f%%\n", float64(s.DealerBusts)*100/float64(s.Rounds))
	}
	fmt.Fprintf(w, "Reshuffles\t%d\n", s.Reshuffles)
	fmt.Fprintf(w, "Net\t%+d\n", s.Net)
	fmt.Fprintf(w, "House edge\t%.3f%%\n", s.HouseEdge()*100)
	fmt.Fprintf(w, "Time\t%s\n", d.Round(time.Millisecond))
	w.Flush()
}
