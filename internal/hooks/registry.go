package hooks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/watzon/hookd/internal/metrics"
)

// Source supplies the full set of hook definitions.
type Source interface {
	Fetch(ctx context.Context) ([]Record, error)
}

// snapshot is one immutable generation of the registry. The key index and
// the filter index are always built together.
type snapshot struct {
	byKey   map[HookType]map[string]*Hook
	filters map[int]string
}

func emptySnapshot() *snapshot {
	return &snapshot{
		byKey: map[HookType]map[string]*Hook{
			HookTypeAPI:   {},
			HookTypeState: {},
		},
		filters: make(map[int]string),
	}
}

// Registry holds the current hooks keyed by type and key.
type Registry struct {
	source  Source
	current atomic.Pointer[snapshot]
}

// NewRegistry creates an empty registry backed by source.
func NewRegistry(source Source) *Registry {
	r := &Registry{source: source}
	r.current.Store(emptySnapshot())
	return r
}

// Load fetches every hook from the source and replaces the registry
// contents. On a source error the previous contents are kept.
func (r *Registry) Load(ctx context.Context) error {
	records, err := r.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetching hooks: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	next := emptySnapshot()
	for _, rec := range records {
		hook, err := NewHook(rec)
		if err != nil {
			log.Error().
				Err(err).
				Int("id", rec.ID).
				Str("name", rec.Name).
				Str("type", rec.Type).
				Msg("Skipping invalid hook")
			continue
		}

		if _, ok := next.filters[hook.ID]; ok {
			log.Error().Int("id", hook.ID).Msg("Skipping hook with duplicate id")
			continue
		}

		if prev, ok := next.byKey[hook.Type][hook.Key]; ok {
			log.Error().
				Int("id", hook.ID).
				Int("existing_id", prev.ID).
				Str("key", hook.Key).
				Msg("Skipping hook with duplicate key")
			continue
		}

		next.byKey[hook.Type][hook.Key] = hook
		next.filters[hook.ID] = hook.Filter()
	}

	r.current.Store(next)
	metrics.SetRegistryHooks(len(next.filters))

	log.Info().Int("count", len(next.filters)).Msg("Hooks loaded")

	return nil
}

// Get returns the hook registered for key under hookType. hookType is case
// insensitive.
func (r *Registry) Get(hookType, key string) (*Hook, bool) {
	keys, ok := r.current.Load().byKey[HookType(strings.ToUpper(hookType))]
	if !ok {
		return nil, false
	}
	hook, ok := keys[key]
	return hook, ok
}

// FilterFor returns the bus filter stored for the hook with id.
func (r *Registry) FilterFor(id int) (string, bool) {
	f, ok := r.current.Load().filters[id]
	return f, ok
}

// Filters returns every stored filter, sorted and without duplicates.
func (r *Registry) Filters() []string {
	snap := r.current.Load()

	seen := make(map[string]struct{}, len(snap.filters))
	result := make([]string, 0, len(snap.filters))
	for _, f := range snap.filters {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		result = append(result, f)
	}
	sort.Strings(result)

	return result
}

// List returns all hooks ordered by ID.
func (r *Registry) List() []*Hook {
	snap := r.current.Load()

	result := make([]*Hook, 0, len(snap.filters))
	for _, keys := range snap.byKey {
		for _, hook := range keys {
			result = append(result, hook)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result
}

// Len returns the number of loaded hooks.
func (r *Registry) Len() int {
	return len(r.current.Load().filters)
}
