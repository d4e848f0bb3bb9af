package app

import (
	"context"
	"log/slog"
	"time"
)

// runJanitor sweeps expired entries every interval until ctx is done.
func runJanitor(ctx context.Context, interval time.Duration, sweepers []namedSweeper, now func() time.Time, log *slog.Logger) error {
	if len(sweepers) == 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sweepOnce(ctx, sweepers, now(), log)
		}
	}
}

func sweepOnce(ctx context.Context, sweepers []namedSweeper, now time.Time, log *slog.Logger) {
	for _, s := range sweepers {
		n, err := s.Sweep(ctx, now)
		if err != nil {
			log.WarnContext(ctx, "sweep failed", "store", s.name, "error", err)
			continue
		}
		if n > 0 {
			log.DebugContext(ctx, "swept expired entries", "store", s.name, "removed", n)
		}
	}
}
