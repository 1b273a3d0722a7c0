package store

import (
	"sync"
	"time"

	"commandr-server/internal/model"
	"commandr-server/internal/resolver"
)

// Account is a live tenant. References handed out by the store stay usable
// after the account is pruned; the store simply stops returning it.
type Account struct {
	ID        string
	Name      string
	CreatedAt time.Time

	resolver *resolver.Resolver
	now      func() time.Time

	mu         sync.Mutex
	accessedAt time.Time
	changedAt  time.Time
	deletedAt  *time.Time
	session    string
	usage      model.Usage
}

// Resolver is the account's private unit resolver.
func (a *Account) Resolver() *resolver.Resolver { return a.resolver }

func (a *Account) AccessedAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accessedAt
}

func (a *Account) ChangedAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.changedAt
}

func (a *Account) DeletedAt() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deletedAt == nil {
		return time.Time{}, false
	}
	return *a.deletedAt, true
}

func (a *Account) Session() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *Account) Usage() model.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

// Record counts an operation on one of the account's resources and marks the
// account changed.
func (a *Account) Record(kind model.ResourceKind, op model.Op) {
	now := a.now()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.usage.Add(kind, op)
	a.changedAt = now
	a.accessedAt = now
}

// touch never moves the access time backwards.
func (a *Account) touch(now time.Time) {
	a.mu.Lock()
	if now.After(a.accessedAt) {
		a.accessedAt = now
	}
	a.mu.Unlock()
}

func (a *Account) setSession(token string) {
	a.mu.Lock()
	a.session = token
	a.mu.Unlock()
}

func (a *Account) markDeleted(now time.Time) {
	a.mu.Lock()
	a.deletedAt = &now
	a.mu.Unlock()
}

func (a *Account) record() model.AccountRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec := model.AccountRecord{
		ID:           a.ID,
		Name:         a.Name,
		Session:      a.session,
		CreationTime: a.CreatedAt,
		AccessTime:   a.accessedAt,
		ChangeTime:   a.changedAt,
		Usage:        a.usage,
	}
	if a.deletedAt != nil {
		t := *a.deletedAt
		rec.DeletionTime = &t
	}
	return rec
}
