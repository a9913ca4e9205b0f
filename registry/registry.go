package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	componenthost "github.com/wippyai/component-host"
	"github.com/wippyai/component-host/analyze"
	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/translate"
)

// DefaultCapacity is the number of components the registry retains
// before evicting the least recently used.
const DefaultCapacity = 50

// Config holds registry construction parameters.
type Config struct {
	// Capacity is the maximum resident component count. 0 means
	// DefaultCapacity; negative disables eviction.
	Capacity int

	Logger *zap.Logger
}

// Status is a point-in-time snapshot of one component's cache entry.
type Status struct {
	ID        string
	Name      string
	Exists    bool
	Loaded    bool
	Size      int
	CreatedAt time.Time
	LastUsed  time.Time
	LastError string
}

// Filter narrows List results. Zero-valued fields match everything.
type Filter struct {
	// NameContains matches case-insensitively against component names.
	NameContains string

	// Interface requires the named interface in the component metadata.
	Interface string

	// MaxSize excludes components larger than this many bytes.
	MaxSize int

	// CreatedAfter excludes components translated at or before this time.
	CreatedAfter time.Time
}

type entry struct {
	tc        *translate.TranslatedComponent
	instance  componenthost.Instance
	createdAt time.Time
	lastUsed  time.Time
	lastError string
}

// Registry is the content-addressable component cache. Entries are
// keyed by content hash and evicted least-recently-used once capacity
// is exceeded. A registered component may be loaded (holding a live
// instance) or unloaded; eviction and removal tear down both states.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	capacity int
	logger   *zap.Logger
	clock    func() time.Time
}

var _ translate.Cache = (*Registry)(nil)

// New creates an empty registry.
func New(cfg Config) *Registry {
	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries:  make(map[string]*entry),
		capacity: capacity,
		logger:   logger,
		clock:    time.Now,
	}
}

// Register inserts a translated component and returns its id. An entry
// with the same id is replaced in place, keeping its creation time.
// When capacity is exceeded the least recently used entry is evicted,
// ties broken by oldest creation time.
func (r *Registry) Register(tc *translate.TranslatedComponent) string {
	now := r.clock()

	r.mu.Lock()
	if existing, ok := r.entries[tc.ID]; ok {
		displaced := existing.tc
		oldInstance := existing.instance
		existing.tc = tc
		existing.instance = nil
		existing.lastUsed = now
		r.mu.Unlock()

		// Identical id means identical bytes, so the displaced compiled
		// module is redundant. Release it and any instance of it.
		if oldInstance != nil {
			r.shutdownInstance(context.Background(), tc.ID, oldInstance)
		}
		if displaced != tc && displaced.Module != nil && displaced.Module != tc.Module {
			if err := displaced.Module.Close(context.Background()); err != nil {
				r.logger.Warn("closing displaced compiled module",
					zap.String("component", tc.ID), zap.Error(err))
			}
		}
		return tc.ID
	}

	r.entries[tc.ID] = &entry{
		tc:        tc,
		createdAt: now,
		lastUsed:  now,
	}

	var victims []*entry
	var victimIDs []string
	for r.capacity > 0 && len(r.entries) > r.capacity {
		id, e := r.coldest(tc.ID)
		if e == nil {
			break
		}
		delete(r.entries, id)
		victims = append(victims, e)
		victimIDs = append(victimIDs, id)
	}
	r.mu.Unlock()

	for i, e := range victims {
		r.teardown(context.Background(), victimIDs[i], e)
		r.logger.Info("evicted component",
			zap.String("component", victimIDs[i]),
			zap.String("name", e.tc.Metadata.Name),
			zap.Time("last_used", e.lastUsed))
	}

	return tc.ID
}

// coldest picks the eviction victim: smallest lastUsed, ties broken by
// smallest createdAt. The just-inserted entry is exempt.
func (r *Registry) coldest(exempt string) (string, *entry) {
	var victimID string
	var victim *entry
	for id, e := range r.entries {
		if id == exempt {
			continue
		}
		if victim == nil ||
			e.lastUsed.Before(victim.lastUsed) ||
			(e.lastUsed.Equal(victim.lastUsed) && e.createdAt.Before(victim.createdAt)) {
			victimID = id
			victim = e
		}
	}
	return victimID, victim
}

// Lookup returns the translated component for id, refreshing its
// recency on hit.
func (r *Registry) Lookup(id string) (*translate.TranslatedComponent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.clock()
	return e.tc, true
}

// Load returns a live instance for the component, instantiating it on
// first use. The entry's recency is refreshed before instantiation so
// a component being loaded is never the eviction victim of a
// concurrent registration. On instantiation failure the component
// stays registered but unloaded, and the failure is recorded on the
// entry.
func (r *Registry) Load(ctx context.Context, id string) (componenthost.Instance, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return nil, errors.NotFound("component", id)
	}
	e.lastUsed = r.clock()
	if e.instance != nil && e.instance.Live() {
		inst := e.instance
		r.mu.Unlock()
		return inst, nil
	}
	// A non-nil dead instance died out from under us, typically because
	// a timed-out call context closed the module. Drop the handle and
	// reinstantiate so one bad execution does not poison the component.
	dead := e.instance
	e.instance = nil
	module := e.tc.Module
	name := e.tc.Metadata.Name
	r.mu.Unlock()

	if dead != nil {
		_ = dead.Close(ctx)
		r.logger.Debug("discarded dead component instance",
			zap.String("component", id))
	}

	inst, err := module.Instantiate(ctx, name)
	if err != nil {
		werr := errors.From(err, errors.PhaseLoad, errors.KindInstantiation,
			"instantiate component "+id)
		r.RecordError(id, werr.Error())
		return nil, werr
	}

	r.mu.Lock()
	e, ok = r.entries[id]
	if !ok {
		// Evicted while instantiating. Tear the orphan down.
		r.mu.Unlock()
		_ = inst.Close(ctx)
		return nil, errors.NotFound("component", id)
	}
	if e.instance != nil && e.instance.Live() {
		// Lost the race to a concurrent Load; keep the winner.
		winner := e.instance
		r.mu.Unlock()
		_ = inst.Close(ctx)
		return winner, nil
	}
	stale := e.instance
	e.instance = inst
	e.lastError = ""
	r.mu.Unlock()

	if stale != nil {
		_ = stale.Close(ctx)
	}
	r.logger.Debug("loaded component",
		zap.String("component", id),
		zap.String("name", name))
	return inst, nil
}

// Unload tears down the component's live instance, if any. The
// component stays registered and can be loaded again later. Unloading
// an unloaded component is a no-op.
func (r *Registry) Unload(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return errors.NotFound("component", id)
	}
	inst := e.instance
	e.instance = nil
	r.mu.Unlock()

	if inst == nil {
		return nil
	}
	r.shutdownInstance(ctx, id, inst)
	r.logger.Debug("unloaded component", zap.String("component", id))
	return nil
}

// Remove unloads and deletes the component, releasing its compiled
// module.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return errors.NotFound("component", id)
	}
	delete(r.entries, id)
	r.mu.Unlock()

	r.teardown(ctx, id, e)
	r.logger.Info("removed component", zap.String("component", id))
	return nil
}

// RecordError stamps a failure message on the component's entry, for
// Status reporting. Unknown ids are ignored.
func (r *Registry) RecordError(id, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.lastError = msg
	}
}

// Status reports the component's cache entry. Exists is false for
// unknown ids; the other fields are then zero.
func (r *Registry) Status(id string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return Status{ID: id}
	}
	return Status{
		ID:        id,
		Name:      e.tc.Metadata.Name,
		Exists:    true,
		Loaded:    e.instance != nil && e.instance.Live(),
		Size:      len(e.tc.Source),
		CreatedAt: e.createdAt,
		LastUsed:  e.lastUsed,
		LastError: e.lastError,
	}
}

// List returns metadata for registered components matching the filter,
// sorted by name. A nil filter matches everything. Listing does not
// refresh recency.
func (r *Registry) List(f *Filter) []analyze.ComponentMetadata {
	r.mu.Lock()
	var out []analyze.ComponentMetadata
	for _, e := range r.entries {
		if f.matches(&e.tc.Metadata, e.createdAt) {
			out = append(out, e.tc.Metadata)
		}
	}
	r.mu.Unlock()

	analyze.SortMetadata(out)
	return out
}

func (f *Filter) matches(m *analyze.ComponentMetadata, createdAt time.Time) bool {
	if f == nil {
		return true
	}
	if f.NameContains != "" &&
		!strings.Contains(strings.ToLower(m.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	if f.Interface != "" && !m.HasInterface(f.Interface) {
		return false
	}
	if f.MaxSize > 0 && m.Size > f.MaxSize {
		return false
	}
	if !f.CreatedAfter.IsZero() && !createdAt.After(f.CreatedAfter) {
		return false
	}
	return true
}

// Len reports the number of registered components.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close tears down every entry. The registry is unusable afterwards
// except as an empty cache.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for id, e := range entries {
		r.teardown(ctx, id, e)
	}
	return nil
}

// teardown releases an entry's instance and compiled module. Called
// without the lock held.
func (r *Registry) teardown(ctx context.Context, id string, e *entry) {
	if e.instance != nil {
		r.shutdownInstance(ctx, id, e.instance)
	}
	if e.tc.Module != nil {
		if err := e.tc.Module.Close(ctx); err != nil {
			r.logger.Warn("closing compiled module",
				zap.String("component", id), zap.Error(err))
		}
	}
}

// shutdownInstance runs the guest cleanup hook best-effort, then closes
// the instance. Hook failures are logged, never propagated. Dead
// instances skip the hook; a closed module cannot run guest code.
func (r *Registry) shutdownInstance(ctx context.Context, id string, inst componenthost.Instance) {
	if inst.Live() {
		if err := inst.Cleanup(ctx); err != nil {
			r.logger.Warn("component cleanup hook failed",
				zap.String("component", id), zap.Error(err))
		}
	}
	if err := inst.Close(ctx); err != nil {
		r.logger.Warn("closing component instance",
			zap.String("component", id), zap.Error(err))
	}
}
