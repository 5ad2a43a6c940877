package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/remotehand/signaling-server-go/internal/metrics"
	"github.com/remotehand/signaling-server-go/internal/repository"
)

// ExpiryJob periodically marks live sessions past their expiry as expired.
// Correctness never depends on it: every read applies the same check
// lazily. The sweep only keeps cheap listing queries honest and caps how
// long a stale waiting row lingers.
type ExpiryJob struct {
	sessionRepo repository.SessionRepository
	interval    time.Duration
	done        chan struct{}
}

func NewExpiryJob(sessionRepo repository.SessionRepository, interval time.Duration) *ExpiryJob {
	return &ExpiryJob{
		sessionRepo: sessionRepo,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (j *ExpiryJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("expiry sweep started")
}

func (j *ExpiryJob) Stop() {
	close(j.done)
	log.Info().Msg("expiry sweep stopped")
}

func (j *ExpiryJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *ExpiryJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.sessionRepo.SweepExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to sweep expired sessions")
		return
	}
	if count > 0 {
		metrics.SessionsSwept.Add(float64(count))
		log.Info().Int64("count", count).Msg("swept expired sessions")
	}
}
