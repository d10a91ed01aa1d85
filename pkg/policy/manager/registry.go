package manager

import (
	"slices"
	"sync"

	"mercator-hq/mixpolicy/pkg/policy/mix"
)

// RegistryConfig bounds the registry.
type RegistryConfig struct {
	// MaxMixes is the maximum number of registered mixes.
	// Default: 50
	MaxMixes int

	// MaxCriteriaPerMix is the maximum number of criteria per mix.
	// Default: 20
	MaxCriteriaPerMix int
}

// DefaultRegistryConfig returns the wire contract limits.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		MaxMixes:          mix.MaxMixesPerPolicy,
		MaxCriteriaPerMix: mix.MaxCriteriaPerMix,
	}
}

// Change describes the effect of a registry mutation.
type Change struct {
	Added   []*mix.Mix
	Updated []*mix.Mix
	Removed []*mix.Mix
}

// Empty reports whether the mutation changed nothing.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// Registry is the bounded set of registered mixes, kept in registration
// order. It stores clones: callers never share a *mix.Mix with it. Every
// mutation is atomic and leaves the registry unchanged when it fails.
type Registry struct {
	mu         sync.Mutex
	config     RegistryConfig
	mixes      []*mix.Mix
	generation uint64
}

// NewRegistry creates an empty registry. Non-positive limits fall back to
// the defaults.
func NewRegistry(config RegistryConfig) *Registry {
	def := DefaultRegistryConfig()
	if config.MaxMixes <= 0 {
		config.MaxMixes = def.MaxMixes
	}
	if config.MaxCriteriaPerMix <= 0 {
		config.MaxCriteriaPerMix = def.MaxCriteriaPerMix
	}
	return &Registry{config: config}
}

// Config returns the registry limits.
func (r *Registry) Config() RegistryConfig {
	return r.config
}

// Add registers a single mix.
func (r *Registry) Add(m *mix.Mix) error {
	return r.AddAll([]*mix.Mix{m})
}

// AddAll registers mixes as one batch: either every mix is added, in order,
// or none is.
func (r *Registry) AddAll(mixes []*mix.Mix) error {
	const op = "add"

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.mixes)+len(mixes) > r.config.MaxMixes {
		return registryError(op, "", mix.ErrCapacityExceeded,
			"%d registered, %d requested, limit %d", len(r.mixes), len(mixes), r.config.MaxMixes)
	}

	seen := make(map[string]bool, len(mixes))
	for _, m := range mixes {
		if err := r.validate(op, m); err != nil {
			return err
		}
		if seen[m.RegistrationID] || r.indexOf(m.RegistrationID) >= 0 {
			return registryError(op, m.RegistrationID, mix.ErrDuplicateRegistration, "registration id in use")
		}
		seen[m.RegistrationID] = true
	}

	for _, m := range mixes {
		r.mixes = append(r.mixes, m.Clone())
	}
	r.generation++
	return nil
}

// Remove unregisters the mix with the given id. Only its owner may remove
// it. The removed mix is returned.
func (r *Registry) Remove(id string, token mix.Token) (*mix.Mix, error) {
	const op = "remove"

	r.mu.Lock()
	defer r.mu.Unlock()

	i, err := r.owned(op, id, token)
	if err != nil {
		return nil, err
	}

	removed := r.mixes[i]
	r.mixes = slices.Delete(r.mixes, i, i+1)
	r.generation++
	return removed, nil
}

// Update replaces the mix with the given id. The replacement keeps the
// position of the original and is owned by token. If the replacement
// carries a different registration id, the change reports the original as
// removed and the replacement as added.
func (r *Registry) Update(id string, token mix.Token, m *mix.Mix) (Change, error) {
	const op = "update"

	r.mu.Lock()
	defer r.mu.Unlock()

	i, err := r.owned(op, id, token)
	if err != nil {
		return Change{}, err
	}

	next := m.Clone()
	next.Token = token
	if err := r.validate(op, next); err != nil {
		return Change{}, err
	}
	if next.RegistrationID != id && r.indexOf(next.RegistrationID) >= 0 {
		return Change{}, registryError(op, next.RegistrationID, mix.ErrDuplicateRegistration, "registration id in use")
	}

	previous := r.mixes[i]
	r.mixes[i] = next
	r.generation++

	if next.RegistrationID == id {
		return Change{Updated: []*mix.Mix{next.Clone()}}, nil
	}
	return Change{Added: []*mix.Mix{next.Clone()}, Removed: []*mix.Mix{previous}}, nil
}

// InvalidateOwner removes every mix owned by token and returns them.
func (r *Registry) InvalidateOwner(token mix.Token) []*mix.Mix {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*mix.Mix
	kept := r.mixes[:0]
	for _, m := range r.mixes {
		if m.Token == token {
			removed = append(removed, m)
			continue
		}
		kept = append(kept, m)
	}
	clear(r.mixes[len(kept):])
	r.mixes = kept

	if len(removed) > 0 {
		r.generation++
	}
	return removed
}

// ReplaceOwned atomically replaces the set of mixes owned by token with
// mixes. Mixes whose registration id was already owned by token keep their
// position; new ones are appended in order.
func (r *Registry) ReplaceOwned(token mix.Token, mixes []*mix.Mix) (Change, error) {
	const op = "replace"

	r.mu.Lock()
	defer r.mu.Unlock()

	incoming := make(map[string]*mix.Mix, len(mixes))
	for _, m := range mixes {
		c := m.Clone()
		c.Token = token
		if err := r.validate(op, c); err != nil {
			return Change{}, err
		}
		if _, dup := incoming[c.RegistrationID]; dup {
			return Change{}, registryError(op, c.RegistrationID, mix.ErrDuplicateRegistration, "registration id repeated")
		}
		if i := r.indexOf(c.RegistrationID); i >= 0 && r.mixes[i].Token != token {
			return Change{}, registryError(op, c.RegistrationID, mix.ErrDuplicateRegistration, "registration id owned by another token")
		}
		incoming[c.RegistrationID] = c
	}

	var (
		change Change
		next   = make([]*mix.Mix, 0, len(r.mixes)+len(mixes))
		placed = make(map[string]bool, len(mixes))
	)
	for _, m := range r.mixes {
		if m.Token != token {
			next = append(next, m)
			continue
		}
		if c, ok := incoming[m.RegistrationID]; ok {
			next = append(next, c)
			placed[c.RegistrationID] = true
			change.Updated = append(change.Updated, c.Clone())
			continue
		}
		change.Removed = append(change.Removed, m)
	}
	for _, m := range mixes {
		if placed[m.RegistrationID] {
			continue
		}
		c := incoming[m.RegistrationID]
		next = append(next, c)
		change.Added = append(change.Added, c.Clone())
	}

	if len(next) > r.config.MaxMixes {
		return Change{}, registryError(op, "", mix.ErrCapacityExceeded,
			"%d mixes after replace, limit %d", len(next), r.config.MaxMixes)
	}

	r.mixes = next
	r.generation++
	return change, nil
}

// View calls fn with the registered mixes in registration order while
// holding the registry lock. fn must not retain or modify the slice or the
// mixes, and must not call back into the registry.
func (r *Registry) View(fn func(mixes []*mix.Mix)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.mixes)
}

// Get returns a copy of the mix with the given id.
func (r *Registry) Get(id string) (*mix.Mix, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return r.mixes[i].Clone(), true
}

// List returns copies of every mix in registration order.
func (r *Registry) List() []*mix.Mix {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*mix.Mix, len(r.mixes))
	for i, m := range r.mixes {
		out[i] = m.Clone()
	}
	return out
}

// Snapshot returns copies of every mix together with the generation they
// belong to.
func (r *Registry) Snapshot() ([]*mix.Mix, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*mix.Mix, len(r.mixes))
	for i, m := range r.mixes {
		out[i] = m.Clone()
	}
	return out, r.generation
}

// Count returns the number of registered mixes.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mixes)
}

// Generation returns a counter incremented by every successful mutation.
func (r *Registry) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// validate checks a mix against the registration invariants.
func (r *Registry) validate(op string, m *mix.Mix) error {
	if m == nil {
		return registryError(op, "", mix.ErrInvalidCriteria, "mix cannot be nil")
	}
	id := m.RegistrationID
	if id == "" {
		return registryError(op, id, mix.ErrInvalidCriteria, "registration id cannot be empty")
	}
	if m.Token.IsZero() {
		return registryError(op, id, mix.ErrPermissionDenied, "mix has no owner token")
	}
	if m.Type != mix.TypePlayers && m.Type != mix.TypeRecorders {
		return registryError(op, id, mix.ErrInvalidCriteria, "invalid mix type %d", int32(m.Type))
	}
	if !m.RouteFlags.Valid() {
		return registryError(op, id, mix.ErrInvalidCriteria, "unknown route flags 0x%x", uint32(m.RouteFlags))
	}
	if len(m.Criteria) > r.config.MaxCriteriaPerMix {
		return registryError(op, id, mix.ErrInvalidCriteria,
			"%d criteria, limit %d", len(m.Criteria), r.config.MaxCriteriaPerMix)
	}
	for i, c := range m.Criteria {
		if !c.WellFormed() {
			return registryError(op, id, mix.ErrInvalidCriteria, "criterion %d has rule 0x%x", i, uint32(c.Rule()))
		}
	}
	return nil
}

// owned returns the index of the mix with the given id after checking that
// token owns it.
func (r *Registry) owned(op, id string, token mix.Token) (int, error) {
	i := r.indexOf(id)
	if i < 0 {
		return -1, registryError(op, id, mix.ErrNotFound, "no such mix")
	}
	if r.mixes[i].Token != token {
		return -1, registryError(op, id, mix.ErrPermissionDenied, "caller does not own the mix")
	}
	return i, nil
}

func (r *Registry) indexOf(id string) int {
	return slices.IndexFunc(r.mixes, func(m *mix.Mix) bool { return m.RegistrationID == id })
}
