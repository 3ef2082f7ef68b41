package scheduler

import (
	"time"

	"croupier/internal/blackjack"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// Pruner deletes settled round history.
type Pruner interface {
	PruneBlackjackResults(before time.Time) (int64, error)
}

// TableWalker visits the shoe of every live table.
type TableWalker func(fn func(guildID string, t *blackjack.Table))

// Jobs are the periodic maintenance tasks of the bot.
type Jobs struct {
	DB        Pruner
	Retention time.Duration
	Tables    TableWalker
	Now       func() time.Time
}

// PruneResults removes history older than the retention window.
func (j *Jobs) PruneResults() error {
	cutoff := j.now().Add(-j.Retention)
	n, err := j.DB.PruneBlackjackResults(cutoff)
	if err != nil {
		return err
	}
	log.Infof("[CRON] Pruned %d blackjack results older than %s", n, cutoff.Format(time.DateOnly))
	return nil
}

// LogTables writes every table's shoe state at debug level.
func (j *Jobs) LogTables() {
	if j.Tables == nil {
		return
	}
	j.Tables(func(guildID string, t *blackjack.Table) {
		log.Debug("[CRON] Table", "guild", guildID, "remaining", t.Remaining(), "running", t.RunningCount(), "true", t.TrueCount(), "reshuffles", t.Reshuffles())
	})
}

func (j *Jobs) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// SetupCron registers the jobs and starts the scheduler. The caller stops
// it on shutdown.
func SetupCron(j *Jobs) (*cron.Cron, error) {
	cronService := cron.New(cron.WithSeconds())

	// Every day at 04:00
	if _, err := cronService.AddFunc("0 0 4 * * *", func() {
		if err := j.PruneResults(); err != nil {
			log.Errorf("[CRON] Prune failed: %v", err)
		}
	}); err != nil {
		return nil, err
	}

	// Every hour
	if _, err := cronService.AddFunc("0 0 * * * *", j.LogTables); err != nil {
		return nil, err
	}

	cronService.Start()
	return cronService, nil
}
