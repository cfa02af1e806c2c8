package offline

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// Lifecycle drives a Manager through install and activation.
type Lifecycle struct {
	mgr      *Manager
	maxTries uint
	backoff  backoff.BackOff
	log      zerolog.Logger
}

// NewLifecycle creates a lifecycle that retries Install up to maxTries times.
func NewLifecycle(mgr *Manager, maxTries uint, log zerolog.Logger) *Lifecycle {
	if maxTries == 0 {
		maxTries = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	return &Lifecycle{mgr: mgr, maxTries: maxTries, backoff: b, log: log}
}

// WithBackOff replaces the retry schedule.
func (l *Lifecycle) WithBackOff(b backoff.BackOff) *Lifecycle {
	l.backoff = b
	return l
}

// Start installs the current generation, retrying failed installs, and then activates it.
// A generation already installed in the store is activated without fetching.
// Requests pass through uncached until Start succeeds.
func (l *Lifecycle) Start(ctx context.Context) error {
	installed, err := l.mgr.Installed(ctx)
	if err != nil {
		l.log.Warn().Err(err).Msg("could not inspect installed cache, reinstalling")
	}
	if !installed {
		if err := l.install(ctx); err != nil {
			return err
		}
	} else {
		l.log.Info().Str("namespace", l.mgr.StaticNamespace()).Msg("static assets already cached")
	}
	_, err = l.mgr.Activate(ctx)
	return err
}

func (l *Lifecycle) install(ctx context.Context) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, l.mgr.Install(ctx)
	},
		backoff.WithBackOff(l.backoff),
		backoff.WithMaxTries(l.maxTries),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			l.log.Warn().Err(err).Dur("retry_in", next).Msg("offline install failed, retrying")
		}),
	)
	return err
}
