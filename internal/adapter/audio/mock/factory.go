package mock

import (
	"errors"
	"sync"

	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/ports"
)

// ErrMockConstruct is returned by Factory.New when construction is set to fail.
var ErrMockConstruct = errors.New("mock backend construction failed")

// Factory builds mock backends and remembers every instance it created,
// so tests can inspect a fallback instance the controller constructed internally.
type Factory struct {
	kind domain.BackendKind

	mu        sync.Mutex
	created   []*Backend
	failNew   bool
	configure func(*Backend)
}

// NewFactory creates a factory producing backends of the given kind.
func NewFactory(kind domain.BackendKind) *Factory {
	return &Factory{kind: kind}
}

// SetFailNew makes subsequent New calls fail.
func (f *Factory) SetFailNew(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNew = fail
}

// Configure registers a hook applied to each backend before it is returned.
func (f *Factory) Configure(fn func(*Backend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configure = fn
}

// New constructs a backend. It matches ports.BackendFactory.
func (f *Factory) New() (ports.PlaybackBackend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNew {
		return nil, domain.NewBackendError(f.kind, "construct", "", ErrMockConstruct)
	}

	b := NewBackend(f.kind)
	if f.configure != nil {
		f.configure(b)
	}
	f.created = append(f.created, b)
	return b, nil
}

// Created returns every backend built so far, oldest first.
func (f *Factory) Created() []*Backend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Backend(nil), f.created...)
}

// Last returns the newest backend, or nil if none was built.
func (f *Factory) Last() *Backend {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

var _ ports.BackendFactory = (*Factory)(nil).New
