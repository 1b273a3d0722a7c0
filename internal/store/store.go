package store

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"commandr-server/internal/audit"
	"commandr-server/internal/metrics"
	"commandr-server/internal/model"
	"commandr-server/internal/resolver"
	"commandr-server/internal/schema"
	"commandr-server/internal/unit"
)

type SessionPolicy string

const (
	// PolicyStrict reports unbound session tokens as not found.
	PolicyStrict SessionPolicy = "strict"
	// PolicyAutoProvision creates and binds a new account for unbound tokens.
	PolicyAutoProvision SessionPolicy = "auto-provision"
)

func ParseSessionPolicy(raw string) (SessionPolicy, error) {
	switch SessionPolicy(raw) {
	case PolicyStrict, PolicyAutoProvision:
		return SessionPolicy(raw), nil
	default:
		return "", errors.Errorf("unknown session policy %q", raw)
	}
}

const (
	DefaultInactivityTimeout = 3 * time.Hour
	DefaultPruneInterval     = 10 * time.Second
)

// Publisher receives per-account event messages.
type Publisher interface {
	Broadcast(accountID string, message []byte)
}

// Disconnector is implemented by publishers that hold per-account
// connections; pruned accounts are disconnected after their last event.
type Disconnector interface {
	Disconnect(accountID string)
}

type Options struct {
	Policy            SessionPolicy
	InactivityTimeout time.Duration
	PruneInterval     time.Duration
	Audit             audit.Sink
	Builtins          *unit.Registry
	Events            Publisher
	Logger            logrus.FieldLogger
	Now               func() time.Time
	// Seed, when set, supplies schemas attached to every auto-provisioned
	// account.
	Seed func() []*schema.Schema
}

// Store is the account registry. It also owns the ownership edges between
// schemas and accounts and the asset collection, so every structural
// mutation is serialized by one lock.
type Store struct {
	mu sync.RWMutex

	policy   SessionPolicy
	timeout  time.Duration
	interval time.Duration
	audit    audit.Sink
	builtins *unit.Registry
	events   Publisher
	log      logrus.FieldLogger
	now      func() time.Time
	seed     func() []*schema.Schema

	accounts       map[string]*Account
	accountsByName map[string]string // lower(name) -> accountID
	sessions       map[string]string // token -> accountID

	schemas      map[string]*schema.Schema
	schemaOwners map[string]string // schemaID -> accountID

	assets   map[string]model.Asset
	assetSeq int64

	pruneMu   sync.Mutex
	lastPrune time.Time
}

func New() *Store {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Store {
	s := &Store{
		policy:         opts.Policy,
		timeout:        opts.InactivityTimeout,
		interval:       opts.PruneInterval,
		audit:          opts.Audit,
		builtins:       opts.Builtins,
		events:         opts.Events,
		log:            opts.Logger,
		now:            opts.Now,
		seed:           opts.Seed,
		accounts:       make(map[string]*Account),
		accountsByName: make(map[string]string),
		sessions:       make(map[string]string),
		schemas:        make(map[string]*schema.Schema),
		schemaOwners:   make(map[string]string),
		assets:         make(map[string]model.Asset),
	}
	if s.policy != PolicyAutoProvision {
		s.policy = PolicyStrict
	}
	if s.timeout <= 0 {
		s.timeout = DefaultInactivityTimeout
	}
	if s.interval <= 0 {
		s.interval = DefaultPruneInterval
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.builtins == nil {
		s.builtins = unit.Builtins()
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.lastPrune = s.now()
	return s
}

func (s *Store) Policy() SessionPolicy { return s.policy }

func (s *Store) Builtins() *unit.Registry { return s.builtins }

// Len returns the number of live accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// ResolveBySession returns the account bound to token. Under the
// auto-provision policy an unbound token gets a fresh account.
func (s *Store) ResolveBySession(token string) (*Account, error) {
	s.maybePrune()
	if token == "" {
		return nil, errors.Wrap(model.ErrNotFound, "empty session")
	}

	now := s.now()
	s.mu.RLock()
	if acc := s.accountForSessionLocked(token); acc != nil {
		acc.touch(now)
		s.mu.RUnlock()
		return acc, nil
	}
	s.mu.RUnlock()

	if s.policy != PolicyAutoProvision {
		return nil, errors.Wrap(model.ErrNotFound, "no account for session")
	}

	s.mu.Lock()
	if acc := s.accountForSessionLocked(token); acc != nil {
		acc.touch(now)
		s.mu.Unlock()
		return acc, nil
	}
	acc := s.createLocked("", now)
	s.bindLocked(token, acc)
	var seeded []*schema.Schema
	if s.seed != nil {
		for _, sc := range s.seed() {
			if err := s.attachLocked(acc, sc); err == nil {
				seeded = append(seeded, sc)
			}
		}
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"account": acc.ID, "schemas": len(seeded)}).Info("account provisioned for session")
	for _, sc := range seeded {
		acc.Record(model.KindSchema, model.OpCreate)
		s.publish(acc.ID, EventSchemaAttached, sc.ID, sc.Name)
	}
	return acc, nil
}

func (s *Store) ResolveByID(id string) (*Account, error) {
	s.maybePrune()
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "account %s", id)
	}
	acc.touch(now)
	return acc, nil
}

// ResolveByName matches names case-insensitively. Unnamed accounts are never
// returned.
func (s *Store) ResolveByName(name string) (*Account, error) {
	s.maybePrune()
	now := s.now()
	key := nameKey(name)
	if key == "" {
		return nil, errors.Wrap(model.ErrNotFound, "empty account name")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.accountsByName[key]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "account %q", name)
	}
	acc := s.accounts[id]
	acc.touch(now)
	return acc, nil
}

// Create registers a new account. A non-empty name must not collide with a
// live account's name.
func (s *Store) Create(name string) (*Account, error) {
	s.maybePrune()
	name = strings.TrimSpace(name)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if key := nameKey(name); key != "" {
		if _, taken := s.accountsByName[key]; taken {
			return nil, errors.Wrapf(model.ErrNameConflict, "account %q", name)
		}
	}
	acc := s.createLocked(name, now)
	s.log.WithFields(logrus.Fields{"account": acc.ID, "name": name}).Info("account created")
	return acc, nil
}

// BindSession makes token resolve to the account. A token bound elsewhere
// moves, and the account's previous token is released.
func (s *Store) BindSession(token, accountID string) error {
	if token == "" {
		return errors.Wrap(model.ErrInvalidArgument, "empty session")
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[accountID]
	if !ok {
		return errors.Wrapf(model.ErrNotFound, "account %s", accountID)
	}
	s.bindLocked(token, acc)
	acc.touch(now)
	return nil
}

func (s *Store) createLocked(name string, now time.Time) *Account {
	id := uuid.NewString()
	acc := &Account{
		ID:         id,
		Name:       name,
		CreatedAt:  now,
		now:        s.now,
		accessedAt: now,
		changedAt:  now,
	}
	acc.resolver = resolver.New(id, resolver.Options{
		Builtins: s.builtins,
		Archives: s,
		Logger:   s.log,
	})
	s.accounts[id] = acc
	if key := nameKey(name); key != "" {
		s.accountsByName[key] = id
	}
	metrics.CounterAccountsCreated.Inc()
	metrics.GaugeAccountsLive.Set(float64(len(s.accounts)))
	return acc
}

func (s *Store) bindLocked(token string, acc *Account) {
	if prevID, ok := s.sessions[token]; ok && prevID != acc.ID {
		if prev, ok := s.accounts[prevID]; ok {
			prev.setSession("")
		}
	}
	if old := acc.Session(); old != "" && old != token {
		delete(s.sessions, old)
	}
	s.sessions[token] = acc.ID
	acc.setSession(token)
}

func (s *Store) accountForSessionLocked(token string) *Account {
	id, ok := s.sessions[token]
	if !ok {
		return nil
	}
	return s.accounts[id]
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
