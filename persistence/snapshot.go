// Package persistence saves the registry's live leases to disk at
// graceful shutdown and restores them at startup, so a restart does not
// silently strand a client holding a credential. A missing or malformed
// snapshot file is treated as empty rather than fatal.
package persistence

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dlr-eoc/min-creds/broker"
	"github.com/dlr-eoc/min-creds/logger"
)

var log = logger.GetLogger("persistence")

// Snapshot is the on-disk shape: service name to its live leases. Services
// with zero live leases are omitted.
type Snapshot map[string][]broker.PersistentLease

// Save writes every broker's live leases to path as YAML. It takes each
// broker's lock in turn, never more than one at a time, so it cannot
// deadlock against request handlers or the sweeper.
func Save(path string, reg *broker.Registry) error {
	snap := make(Snapshot)
	for _, name := range reg.Services() {
		b, ok := reg.Broker(name)
		if !ok {
			continue
		}
		leases := b.Snapshot()
		if len(leases) == 0 {
			continue
		}
		snap[name] = leases
	}

	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling lease snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing lease snapshot to %s: %w", path, err)
	}
	return nil
}

// Load reads path and restores any matching leases into reg. A missing,
// unreadable, or malformed snapshot is non-fatal: Load logs a warning and
// returns nil, leaving every broker's pool untouched.
func Load(path string, reg *broker.Registry) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Warn("no lease snapshot to restore, starting empty")
			return nil
		}
		log.WithError(err).Warn("could not read lease snapshot, starting empty")
		return nil
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		log.WithError(err).Warn("could not parse lease snapshot, starting empty")
		return nil
	}

	now := time.Now().UTC()
	for name, leases := range snap {
		b, ok := reg.Broker(name)
		if !ok {
			log.WithField("service", name).Warn("snapshot references a service no longer configured, dropping its leases")
			continue
		}
		b.Restore(leases, now)
	}
	return nil
}
