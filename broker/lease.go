package broker

import (
	"time"

	"github.com/google/uuid"
)

// LeaseId uniquely identifies one outstanding lease across the process
// lifetime.
type LeaseId string

func newLeaseId() LeaseId {
	return LeaseId(uuid.New().String())
}

// Expiration is the validity window of a lease. Both timestamps are UTC
// wall-clock.
type Expiration struct {
	CreatedOn time.Time `yaml:"created_on"`
	ExpiresOn time.Time `yaml:"expires_on"`
}

// Expired reports whether the expiration is in the past relative to now.
func (e Expiration) Expired(now time.Time) bool {
	return e.ExpiresOn.Before(now)
}

// Lease is an outstanding loan of one credential to one client.
type Lease struct {
	ID         LeaseId
	Credential Credential
	ClientName string
	Expiration Expiration
}

func newLease(cred Credential, clientName string, expiresIn time.Duration, now time.Time) Lease {
	now = now.UTC()
	return Lease{
		ID:         newLeaseId(),
		Credential: cred,
		ClientName: clientName,
		Expiration: Expiration{
			CreatedOn: now,
			ExpiresOn: now.Add(expiresIn),
		},
	}
}

// leaseTable maps live lease ids to leases for one service.
type leaseTable struct {
	byID map[LeaseId]Lease
}

func newLeaseTable() *leaseTable {
	return &leaseTable{byID: make(map[LeaseId]Lease)}
}

func (t *leaseTable) insert(l Lease) {
	t.byID[l.ID] = l
}

func (t *leaseTable) remove(id LeaseId) (Lease, bool) {
	l, ok := t.byID[id]
	if ok {
		delete(t.byID, id)
	}
	return l, ok
}

// sweepExpired removes and returns every lease whose expiration is in the
// past relative to now. Order among swept leases is unspecified.
func (t *leaseTable) sweepExpired(now time.Time) []Lease {
	var expired []Lease
	for id, l := range t.byID {
		if l.Expiration.Expired(now) {
			expired = append(expired, l)
			delete(t.byID, id)
		}
	}
	return expired
}

func (t *leaseTable) len() int {
	return len(t.byID)
}
