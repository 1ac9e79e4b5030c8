package provider_test

import (
	"sync"
	"time"
)

type observation struct {
	provider  string
	operation string
	outcome   string
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []observation
}

func (r *fakeRecorder) ObserveProviderCall(provider, operation, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, observation{provider: provider, operation: operation, outcome: outcome})
}

func (r *fakeRecorder) observations() []observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]observation(nil), r.seen...)
}
