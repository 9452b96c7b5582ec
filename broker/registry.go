package broker

import (
	"time"

	"github.com/dlr-eoc/min-creds/config"
)

// Registry is the immutable mapping from service name to its broker, built
// once at startup from configuration, plus the set of accepted bearer
// tokens. Lookup is O(1). The map itself is never mutated after
// NewRegistry returns; only the interior of each Broker changes.
type Registry struct {
	brokers map[string]*Broker
	tokens  map[string]struct{}
}

// NewRegistry builds one Broker per configured service, expanding each
// credential into num_concurrent identical pool entries.
func NewRegistry(cfg *config.Config) *Registry {
	reg := &Registry{
		brokers: make(map[string]*Broker, len(cfg.Services)),
		tokens:  make(map[string]struct{}, len(cfg.AccessTokens)),
	}

	for name, svc := range cfg.Services {
		var seed []Credential
		for _, c := range svc.Credentials {
			for i := 0; i < c.NumConcurrent; i++ {
				seed = append(seed, Credential{User: c.User, Password: c.Password})
			}
		}
		expiresIn := time.Duration(svc.LeaseTimeoutSecs) * time.Second
		reg.brokers[name] = NewBroker(seed, expiresIn)
	}

	for _, tok := range cfg.AccessTokens {
		reg.tokens[tok] = struct{}{}
	}

	return reg
}

// Broker returns the broker for name, if the service is configured.
func (r *Registry) Broker(name string) (*Broker, bool) {
	b, ok := r.brokers[name]
	return b, ok
}

// Authenticate reports whether token is one of the configured access
// tokens.
func (r *Registry) Authenticate(token string) bool {
	_, ok := r.tokens[token]
	return ok
}

// Services returns the configured service names, for iteration by the
// sweeper and the overview and snapshot handlers. Order is unspecified.
func (r *Registry) Services() []string {
	names := make([]string, 0, len(r.brokers))
	for name := range r.brokers {
		names = append(names, name)
	}
	return names
}
