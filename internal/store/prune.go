package store

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"commandr-server/internal/metrics"
	"commandr-server/internal/model"
)

func (s *Store) maybePrune() {
	s.Prune(s.now())
}

// Prune removes every account not accessed for longer than the inactivity
// timeout and returns how many were removed. Passes closer together than the
// prune interval do nothing. Each removed account is written to the audit
// sink after the registry lock is released; sink failures are logged only.
func (s *Store) Prune(now time.Time) int {
	s.pruneMu.Lock()
	if now.Sub(s.lastPrune) < s.interval {
		s.pruneMu.Unlock()
		return 0
	}
	s.lastPrune = now
	s.pruneMu.Unlock()
	metrics.CounterPrunePasses.Inc()

	s.mu.Lock()
	var records []model.AccountRecord
	for _, acc := range s.accounts {
		if now.Sub(acc.AccessedAt()) <= s.timeout {
			continue
		}
		acc.markDeleted(now)
		records = append(records, s.snapshotLocked(acc))
		s.removeLocked(acc)
	}
	live := len(s.accounts)
	s.mu.Unlock()

	metrics.GaugeAccountsLive.Set(float64(live))
	if len(records) == 0 {
		return 0
	}
	metrics.CounterAccountsPruned.Add(float64(len(records)))
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	if err := s.audit.Write(records); err != nil {
		metrics.CounterAuditWriteFailures.Inc()
		s.log.WithError(err).WithField("accounts", len(records)).Warn("audit write failed for pruned accounts")
	}
	for _, rec := range records {
		s.publish(rec.ID, EventAccountPruned, rec.ID, rec.Name)
		if d, ok := s.events.(Disconnector); ok {
			d.Disconnect(rec.ID)
		}
		s.log.WithFields(logrus.Fields{"account": rec.ID, "name": rec.Name, "lastAccess": rec.AccessTime}).Info("account pruned")
	}
	return len(records)
}

func (s *Store) snapshotLocked(acc *Account) model.AccountRecord {
	rec := acc.record()
	for _, owner := range s.schemaOwners {
		if owner == acc.ID {
			rec.Schemas++
		}
	}
	for _, a := range s.assets {
		if a.AccountID == acc.ID {
			rec.Assets++
		}
	}
	return rec
}

// removeLocked drops the account with its session binding, ownership edges
// and assets.
func (s *Store) removeLocked(acc *Account) {
	delete(s.accounts, acc.ID)
	if key := nameKey(acc.Name); key != "" && s.accountsByName[key] == acc.ID {
		delete(s.accountsByName, key)
	}
	if token := acc.Session(); token != "" && s.sessions[token] == acc.ID {
		delete(s.sessions, token)
	}
	for schemaID, owner := range s.schemaOwners {
		if owner == acc.ID {
			delete(s.schemaOwners, schemaID)
			delete(s.schemas, schemaID)
		}
	}
	for id, a := range s.assets {
		if a.AccountID == acc.ID {
			delete(s.assets, id)
		}
	}
}
