package artifact

import (
	"context"
	"time"
)

// RetentionPolicy makes artifact expiry explicit instead of assuming
// infinite storage. TTL <= 0 keeps artifacts forever.
type RetentionPolicy struct {
	TTL time.Duration
}

func (p RetentionPolicy) expired(createdAt, now time.Time) bool {
	if p.TTL <= 0 {
		return false
	}
	return now.Sub(createdAt) >= p.TTL
}

// StartJanitor periodically sweeps expired artifacts until ctx is done.
// It is a no-op when the policy has no TTL.
func StartJanitor(ctx context.Context, s Store, interval time.Duration) {
	sweeper, ok := s.(interface{ sweep(now time.Time) })
	if !ok {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				sweeper.sweep(now)
			}
		}
	}()
}
