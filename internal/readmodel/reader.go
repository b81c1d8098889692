// Package readmodel serves family and person state to collaborators from a
// single cache keyed by entity id. The broadcast hub invalidates it after
// every committed change, so a re-read after a ledger call sees the new state.
package readmodel

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"budgetsim/internal/cache"
	"budgetsim/internal/core"
	"budgetsim/internal/log"
	"budgetsim/internal/storage"
)

// Store is the read side of the repository.
type Store interface {
	ListFamilies(ctx context.Context) ([]core.Family, error)
	GetFamily(ctx context.Context, id int64) (*core.Family, error)
	FindFamiliesByName(ctx context.Context, name string) ([]core.Family, error)
	ListPeople(ctx context.Context, familyID int64) ([]core.Person, error)
	GetPerson(ctx context.Context, id int64) (*core.Person, error)
}

var _ Store = (*storage.SQLiteRepository)(nil)

type Config struct {
	Size int
	TTL  time.Duration
}

func DefaultConfig() Config {
	return Config{Size: 256, TTL: 30 * time.Second}
}

const allFamiliesKey = "families:all"

type Reader struct {
	store    Store
	list     *cache.LRUCache[[]core.Family]
	families *cache.LRUCache[core.Family]
	people   *cache.LRUCache[core.Person]
	group    singleflight.Group
	// gen increments on every invalidation. Loads started under an older
	// generation are neither cached nor shared with newer callers.
	gen    atomic.Uint64
	logger *log.Logger
}

func New(store Store, cfg Config, logger *log.Logger) *Reader {
	if cfg.Size <= 0 {
		cfg.Size = DefaultConfig().Size
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Reader{
		store:    store,
		list:     cache.NewLRUCache[[]core.Family](1, cfg.TTL),
		families: cache.NewLRUCache[core.Family](cfg.Size, cfg.TTL),
		people:   cache.NewLRUCache[core.Person](cfg.Size, cfg.TTL),
		logger:   logger.WithComponent(log.ComponentReadModel),
	}
}

// Cleaners exposes the caches for periodic expiry.
func (r *Reader) Cleaners() []cache.Cleaner {
	return []cache.Cleaner{r.list, r.families, r.people}
}

// ListFamilies returns the full family table ordered by id.
func (r *Reader) ListFamilies(ctx context.Context) ([]core.Family, error) {
	if cached, ok := r.list.Get(allFamiliesKey); ok {
		return cloneFamilies(cached), nil
	}

	v, err := r.load(ctx, allFamiliesKey, func(ctx context.Context, gen uint64) (any, error) {
		if cached, ok := r.list.Get(allFamiliesKey); ok {
			return cached, nil
		}
		families, err := r.store.ListFamilies(ctx)
		if err != nil {
			return nil, err
		}
		if r.gen.Load() == gen {
			r.list.Set(allFamiliesKey, families)
		}
		return families, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneFamilies(v.([]core.Family)), nil
}

func (r *Reader) GetFamily(ctx context.Context, id int64) (*core.Family, error) {
	key := familyKey(id)
	if f, ok := r.families.Get(key); ok {
		return &f, nil
	}

	v, err := r.load(ctx, key, func(ctx context.Context, gen uint64) (any, error) {
		f, err := r.store.GetFamily(ctx, id)
		if err != nil {
			return nil, err
		}
		if r.gen.Load() == gen {
			r.families.Set(key, *f)
		}
		return *f, nil
	})
	if err != nil {
		return nil, err
	}
	f := v.(core.Family)
	return &f, nil
}

// FindFamiliesByName is the username lookup. It is not cached.
func (r *Reader) FindFamiliesByName(ctx context.Context, name string) ([]core.Family, error) {
	return r.store.FindFamiliesByName(ctx, name)
}

// ListPeople lists people of one family, or all people when familyID is 0.
func (r *Reader) ListPeople(ctx context.Context, familyID int64) ([]core.Person, error) {
	return r.store.ListPeople(ctx, familyID)
}

func (r *Reader) GetPerson(ctx context.Context, id int64) (*core.Person, error) {
	key := personKey(id)
	if p, ok := r.people.Get(key); ok {
		return &p, nil
	}

	v, err := r.load(ctx, key, func(ctx context.Context, gen uint64) (any, error) {
		p, err := r.store.GetPerson(ctx, id)
		if err != nil {
			return nil, err
		}
		if r.gen.Load() == gen {
			r.people.Set(key, *p)
		}
		return *p, nil
	})
	if err != nil {
		return nil, err
	}
	p := v.(core.Person)
	return &p, nil
}

// Invalidate drops every entry the change may have touched.
func (r *Reader) Invalidate(change core.Change) {
	r.gen.Add(1)
	r.list.Delete(allFamiliesKey)
	if change.FamilyID != 0 {
		r.families.Delete(familyKey(change.FamilyID))
	}
	if change.PersonID != 0 {
		r.people.Delete(personKey(change.PersonID))
	}
	// A family delete cascades to people we cannot enumerate here.
	if change.Operation == log.OpDelete && change.PersonID == 0 {
		r.people.Purge()
	}
	r.logger.Debug("read model invalidated", log.FieldOperation, change.Operation,
		log.FieldFamilyID, change.FamilyID, log.FieldPersonID, change.PersonID)
}

// Stats reports hit ratios of the entity caches.
func (r *Reader) Stats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"list":     r.list.Stats(),
		"families": r.families.Stats(),
		"people":   r.people.Stats(),
	}
}

// load runs fn once per key and generation for all concurrent callers. The
// shared load does not inherit any one caller's cancellation; a caller whose
// ctx ends stops waiting without failing the others.
func (r *Reader) load(ctx context.Context, key string, fn func(ctx context.Context, gen uint64) (any, error)) (any, error) {
	gen := r.gen.Load()
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		return fn(shared, gen)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func cloneFamilies(in []core.Family) []core.Family {
	out := make([]core.Family, len(in))
	copy(out, in)
	return out
}

func familyKey(id int64) string { return "family:" + strconv.FormatInt(id, 10) }
func personKey(id int64) string { return "person:" + strconv.FormatInt(id, 10) }
