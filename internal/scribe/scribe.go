package scribe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emcshop-dev/emcshop/internal/model"
)

// Scribe recognizes one family of transaction descriptions.
type Scribe interface {
	// Parse returns the detail for description, or false if the description
	// is not one this scribe handles.
	Parse(description string) (model.Detail, bool, error)
	Name() string
}

// Registry holds named scribes. Classify tries them in registration order.
type Registry struct {
	order  []Scribe
	byName map[string]Scribe
}

// NewRegistry creates an empty scribe registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Scribe)}
}

// Register adds a scribe. Panics on duplicate name.
func (r *Registry) Register(s Scribe) {
	key := strings.ToLower(s.Name())
	if _, ok := r.byName[key]; ok {
		panic("duplicate scribe name: " + key)
	}
	r.byName[key] = s
	r.order = append(r.order, s)
}

// Get returns the scribe registered as name, or nil.
func (r *Registry) Get(name string) Scribe {
	return r.byName[strings.ToLower(name)]
}

// Names returns the registered scribe names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, s := range r.order {
		names[i] = s.Name()
	}
	return names
}

// Classify returns the detail of the first scribe that recognizes
// description, or model.Raw{} if none does. The returned detail is never nil.
// Scribes that fail are skipped; their errors are joined into the returned
// error so the caller can log them.
func (r *Registry) Classify(description string) (model.Detail, error) {
	var errs []error
	for _, s := range r.order {
		d, ok, err := s.Parse(description)
		if err != nil {
			errs = append(errs, fmt.Errorf("scribe %s: %w", s.Name(), err))
			continue
		}
		if ok {
			return d, errors.Join(errs...)
		}
	}
	return model.Raw{}, errors.Join(errs...)
}

// DefaultRegistry returns a registry with all built-in scribes.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(shopScribe{})
	r.Register(paymentScribe{})
	r.Register(exactScribe{name: "daily-signin", text: "Daily sign-in bonus", tag: model.TagDailySignin})
	r.Register(horseSummonScribe())
	r.Register(mailScribe())
	r.Register(eggifyScribe())
	r.Register(lockScribe())
	r.Register(voteScribe())
	r.Register(exactScribe{name: "vault", text: "Opened cross-server vault", tag: model.TagVault})
	return r
}
