// Package subscriptions keeps the bus subscription set in step with the hook
// registry.
package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/watzon/hookd/internal/metrics"
)

// ErrIncompleteSubscriptions marks a reload that left the bus subscribed to
// only part of the registry's filters.
var ErrIncompleteSubscriptions = errors.New("bus subscriptions may be incomplete")

// API calls that create, modify or remove hooks.
var mutatingCalls = []string{
	"one.hook.allocate",
	"one.hook.update",
	"one.hook.delete",
}

// StaticFilters returns the filters for registry-mutating calls. They stay
// subscribed for the lifetime of the daemon.
func StaticFilters() []string {
	filters := make([]string, len(mutatingCalls))
	for i, call := range mutatingCalls {
		filters[i] = "API " + call + " 1"
	}
	return filters
}

// IsRegistryMutating reports whether an API event with key invalidates the
// loaded hooks.
func IsRegistryMutating(key string) bool {
	for _, call := range mutatingCalls {
		if key == call {
			return true
		}
	}
	return false
}

// Subscriber is the part of the bus the manager drives.
type Subscriber interface {
	Subscribe(filter string) error
	Unsubscribe(filter string) error
}

// Registry is the part of the hook registry the manager drives.
type Registry interface {
	Load(ctx context.Context) error
	Filters() []string
}

// Manager mirrors the registry's filters onto the bus. It is not safe for
// concurrent use; a single control goroutine owns it.
type Manager struct {
	bus      Subscriber
	registry Registry
	static   map[string]struct{}
}

// NewManager creates a manager for bus and registry.
func NewManager(bus Subscriber, registry Registry) *Manager {
	static := make(map[string]struct{}, len(mutatingCalls))
	for _, f := range StaticFilters() {
		static[f] = struct{}{}
	}

	return &Manager{
		bus:      bus,
		registry: registry,
		static:   static,
	}
}

// InitialLoad loads the registry and subscribes to the static filters and
// every registry filter. A registry load failure is logged and leaves the
// registry empty; only bus errors are returned.
func (m *Manager) InitialLoad(ctx context.Context) error {
	if err := m.registry.Load(ctx); err != nil {
		log.Error().Err(err).Msg("Initial hook load failed, starting with no hooks")
	}

	for _, f := range StaticFilters() {
		if err := m.bus.Subscribe(f); err != nil {
			return err
		}
	}

	return m.subscribeAll()
}

// Reload unsubscribes every current registry filter, reloads the registry
// and subscribes to the new filters. Static filters are untouched. If the
// load fails the previous registry is kept and its filters resubscribed.
// Bus failures do not stop the cycle; they are returned wrapped in
// ErrIncompleteSubscriptions once every filter has been attempted.
func (m *Manager) Reload(ctx context.Context) error {
	log.Info().Msg("Reloading hooks")

	var busErr error
	if err := m.unsubscribeAll(); err != nil {
		busErr = err
	}

	loadErr := m.registry.Load(ctx)
	metrics.RecordReload(loadErr)

	if err := m.subscribeAll(); err != nil {
		busErr = errors.Join(busErr, err)
	}

	if busErr != nil {
		return errors.Join(loadErr, fmt.Errorf("%w: %w", ErrIncompleteSubscriptions, busErr))
	}
	if loadErr != nil {
		return fmt.Errorf("reloading hooks: %w", loadErr)
	}
	return nil
}

// subscribeAll attempts every registry filter and joins the failures.
func (m *Manager) subscribeAll() error {
	var errs []error
	for _, f := range m.registry.Filters() {
		if _, ok := m.static[f]; ok {
			continue
		}
		if err := m.bus.Subscribe(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// unsubscribeAll attempts every registry filter and joins the failures.
func (m *Manager) unsubscribeAll() error {
	var errs []error
	for _, f := range m.registry.Filters() {
		if _, ok := m.static[f]; ok {
			continue
		}
		if err := m.bus.Unsubscribe(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
