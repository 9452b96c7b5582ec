// Package broker implements the credential-lease broker's core: the
// per-service credential pool, lease table, waiter queue, and the atomic
// issue/release/expire/serve-waiters operations that tie them together.
//
// Ground: github.com/coredhcp/coredhcp/plugins/leasestorage's lease
// bookkeeping (expiry sweep returning reclaimed resources, lookup/update
// under a per-record lock) is generalized here from "one storage record per
// DHCP client" to "one broker per named downstream service, guarded by a
// single mutex", since the pool, lease table, and waiter queue must move
// atomically together rather than as independently lockable pieces.
package broker

import (
	"sync"
	"time"

	"github.com/dlr-eoc/min-creds/logger"
)

var log = logger.GetLogger("broker")

// ReleaseInfo is returned by Release on success: how long the lease was
// held, and by whom.
type ReleaseInfo struct {
	Duration   time.Duration
	ClientName string
}

// Overview is the snapshot of a broker's state used by the HTTP overview
// endpoint.
type Overview struct {
	CredentialsAvailable int
	CredentialsInUse     int
	ClientsWaiting       int
}

// Broker holds the pool, lease table, and waiter queue for one named
// service, and makes every operation on them atomic with respect to
// concurrent callers. Brokers for distinct services never share a lock.
type Broker struct {
	mu        sync.Mutex
	pool      *credentialPool
	leases    *leaseTable
	waiters   *waiterQueue
	expiresIn time.Duration
}

// NewBroker builds a broker for a service whose pool starts out with the
// given credentials (already expanded from configuration: num_concurrent
// copies per configured credential) and whose leases expire expiresIn
// after being issued.
func NewBroker(seed []Credential, expiresIn time.Duration) *Broker {
	return &Broker{
		pool:      newCredentialPool(seed),
		leases:    newLeaseTable(),
		waiters:   newWaiterQueue(),
		expiresIn: expiresIn,
	}
}

// Obtain tries to hand out a credential immediately. On success it returns
// a live lease and a nil channel. If the pool is empty it parks the caller as a
// waiter and returns a channel the caller must select on to receive the
// eventual lease, together with an abandon function; if the caller gives
// up, it must call abandon so the broker can reclaim the slot lazily.
//
// Obtain never blocks: all suspension happens in the caller, outside the
// broker lock, which is what lets a released credential become visible to
// every blocked caller without anyone holding a lock while parked.
func (b *Broker) Obtain(now time.Time, clientName string) (lease Lease, wait <-chan Lease, abandon func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expireLocked(now)

	if cred, ok := b.pool.takeFront(); ok {
		l := newLease(cred, clientName, b.expiresIn, now)
		b.leases.insert(l)
		return l, nil, nil
	}

	w := newWaiter(clientName)
	b.waiters.enqueue(w)
	return Lease{}, w.slot, w.abandon
}

// Release returns a held lease's credential to the pool and wakes the
// next eligible waiter. It reports false if id names no live lease.
func (b *Broker) Release(id LeaseId) (ReleaseInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.leases.remove(id)
	if !ok {
		return ReleaseInfo{}, false
	}
	b.pool.returnBack(l.Credential)
	b.serveWaitersLocked(time.Now().UTC())

	return ReleaseInfo{
		Duration:   time.Since(l.Expiration.CreatedOn),
		ClientName: l.ClientName,
	}, true
}

// Sweep reclaims every lease that has expired by now, return its credential to the pool, and serve any
// waiters that can now be satisfied. It returns the number of leases
// reclaimed.
func (b *Broker) Sweep(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.expireLocked(now)
	b.serveWaitersLocked(now)
	return n
}

// Overview reports the broker's current counts, all read under the same
// lock so they describe one consistent instant.
func (b *Broker) Overview() Overview {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Overview{
		CredentialsAvailable: b.pool.len(),
		CredentialsInUse:     b.leases.len(),
		ClientsWaiting:       b.waiters.len(),
	}
}

func (b *Broker) expireLocked(now time.Time) int {
	expired := b.leases.sweepExpired(now)
	for _, l := range expired {
		b.pool.returnBack(l.Credential)
	}
	return len(expired)
}

// serveWaitersLocked hands out credentials to parked waiters: while the
// pool is non-empty and waiters remain, hand the front credential to the front
// waiter. If the waiter abandoned its slot, roll the lease back and put
// the credential at the *front* of the pool so the next waiter gets it
// without losing priority, then keep going.
func (b *Broker) serveWaitersLocked(now time.Time) {
	for {
		cred, ok := b.pool.takeFront()
		if !ok {
			return
		}
		w, ok := b.waiters.dequeue()
		if !ok {
			b.pool.returnFront(cred)
			return
		}

		l := newLease(cred, w.clientName, b.expiresIn, now)
		b.leases.insert(l)

		if w.deliver(l) {
			continue
		}

		b.leases.remove(l.ID)
		b.pool.returnFront(cred)
	}
}

// Snapshot returns a PersistentLease for every currently live lease, for
// saving to disk before shutdown.
func (b *Broker) Snapshot() []PersistentLease {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]PersistentLease, 0, b.leases.len())
	for _, l := range b.leases.byID {
		out = append(out, PersistentLease{
			LeaseID:    string(l.ID),
			Expiration: l.Expiration,
			ClientName: l.ClientName,
			CredHash:   l.Credential.Fingerprint(),
		})
	}
	return out
}

// Restore reinserts persisted leases whose fingerprint still matches a
// credential in the pool and whose expiry is still in the future. Any pool
// credential not claimed by a persisted lease is simply left in the pool.
func (b *Broker) Restore(entries []PersistentLease, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	byFingerprint := make(map[string][]Credential, b.pool.len())
	for {
		cred, ok := b.pool.takeFront()
		if !ok {
			break
		}
		fp := cred.Fingerprint()
		byFingerprint[fp] = append(byFingerprint[fp], cred)
	}

	for _, e := range entries {
		if e.Expiration.Expired(now) {
			continue
		}
		matches := byFingerprint[e.CredHash]
		if len(matches) == 0 {
			continue
		}
		cred := matches[0]
		byFingerprint[e.CredHash] = matches[1:]
		b.leases.insert(Lease{
			ID:         LeaseId(e.LeaseID),
			Credential: cred,
			ClientName: e.ClientName,
			Expiration: Expiration{
				CreatedOn: e.Expiration.CreatedOn.UTC(),
				ExpiresOn: e.Expiration.ExpiresOn.UTC(),
			},
		})
	}

	for _, creds := range byFingerprint {
		for _, cred := range creds {
			b.pool.returnBack(cred)
		}
	}
}
