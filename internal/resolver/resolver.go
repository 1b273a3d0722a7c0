// Package resolver turns unit names into loaded units for one account.
//
// Every account owns exactly one Resolver. A resolver consults, in order,
// its own cache, the trusted built-in registry and the account's code
// archives, and remembers whatever it found. Units loaded from archives are
// owned by the resolver instance, so two accounts resolving the same name
// always get distinct units even when the archive bytes are identical.
package resolver

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"commandr-server/internal/metrics"
	"commandr-server/internal/model"
	"commandr-server/internal/unit"
)

// ArchiveSource lists the assets an account currently owns.
type ArchiveSource interface {
	AssetsOf(accountID string) []model.Asset
}

// Step is one link of the resolution chain. Lookup returns a nil unit and a
// nil error when the step has nothing for name.
type Step interface {
	Name() string
	Lookup(name string) (*unit.Unit, error)
}

type Options struct {
	Builtins *unit.Registry
	Archives ArchiveSource
	Logger   logrus.FieldLogger
}

type Resolver struct {
	id    string
	owner string
	log   logrus.FieldLogger

	mu    sync.RWMutex
	cache map[string]*unit.Unit

	loads singleflight.Group
	steps []Step
}

func New(owner string, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	r := &Resolver{
		id:    uuid.NewString(),
		owner: owner,
		cache: make(map[string]*unit.Unit),
	}
	r.log = logger.WithFields(logrus.Fields{"account": owner, "resolver": r.id})
	r.steps = []Step{
		cacheStep{r: r},
		builtinStep{registry: opts.Builtins},
		archiveStep{r: r, source: opts.Archives},
	}
	return r
}

// ID is the loader identity stamped on every unit this resolver loads.
func (r *Resolver) ID() string    { return r.id }
func (r *Resolver) Owner() string { return r.owner }

// Resolve returns the unit called name. Repeated calls for the same name
// return the same *unit.Unit. Concurrent calls for one name load it once.
func (r *Resolver) Resolve(name string) (*unit.Unit, error) {
	if name == "" {
		return nil, errors.Wrap(model.ErrInvalidArgument, "empty unit name")
	}
	if u, ok := r.cached(name); ok {
		metrics.CounterUnitResolutions.WithLabelValues("cache").Inc()
		return u, nil
	}

	v, err, _ := r.loads.Do(name, func() (interface{}, error) {
		for _, step := range r.steps {
			u, err := step.Lookup(name)
			if err != nil {
				return nil, err
			}
			if u == nil {
				continue
			}
			r.remember(name, u)
			metrics.CounterUnitResolutions.WithLabelValues(step.Name()).Inc()
			r.log.WithFields(logrus.Fields{"unit": name, "step": step.Name()}).Debug("unit resolved")
			return u, nil
		}
		metrics.CounterUnitResolveFailures.Inc()
		return nil, errors.Wrapf(model.ErrUnitNotFound, "unit %q", name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*unit.Unit), nil
}

// Cached returns the number of units this resolver has resolved so far.
func (r *Resolver) Cached() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Resolver) cached(name string) (*unit.Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.cache[name]
	return u, ok
}

func (r *Resolver) remember(name string, u *unit.Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[name] = u
}

type cacheStep struct {
	r *Resolver
}

func (cacheStep) Name() string { return "cache" }

func (s cacheStep) Lookup(name string) (*unit.Unit, error) {
	u, _ := s.r.cached(name)
	return u, nil
}

type builtinStep struct {
	registry *unit.Registry
}

func (builtinStep) Name() string { return "builtin" }

func (s builtinStep) Lookup(name string) (*unit.Unit, error) {
	if s.registry == nil {
		return nil, nil
	}
	u, _ := s.registry.Lookup(name)
	return u, nil
}
