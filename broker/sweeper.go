package broker

import (
	"context"
	"time"
)

// sweepInterval is the fixed wall-clock period between expiry sweeps. It
// is not configurable: obtaining a lease already sweeps its own service on
// the way in, so this only bounds the worst-case lag between an expiry and
// its waiters being served.
const sweepInterval = 3 * time.Second

// RunSweeper ticks every sweepInterval and sweeps every broker in the
// registry, reclaiming expired leases and serving any waiters that can now
// be satisfied. Ground:
// github.com/coredhcp/coredhcp/plugins/leasestorage/transient's
// expireTask, generalized from one store to every broker in the registry.
//
// RunSweeper blocks until ctx is cancelled.
func RunSweeper(ctx context.Context, reg *Registry) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(reg)
		}
	}
}

func sweepOnce(reg *Registry) {
	now := time.Now().UTC()
	for _, name := range reg.Services() {
		b, ok := reg.Broker(name)
		if !ok {
			continue
		}
		if n := b.Sweep(now); n > 0 {
			log.WithField("service", name).Infof("reaped %d expired lease(s)", n)
		}
	}
}
