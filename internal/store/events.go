package store

import (
	"encoding/json"
)

const (
	EventAssetAdded     = "asset-added"
	EventAssetRemoved   = "asset-removed"
	EventSchemaAttached = "schema-attached"
	EventSchemaDetached = "schema-detached"
	EventAccountPruned  = "account-pruned"
)

type Event struct {
	Type      string `json:"type"`
	AccountID string `json:"accountId"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	At        int64  `json:"at"`
}

func (s *Store) publish(accountID, typ, id, name string) {
	if s.events == nil {
		return
	}
	out, err := json.Marshal(Event{Type: typ, AccountID: accountID, ID: id, Name: name, At: s.now().UnixMilli()})
	if err != nil {
		s.log.WithError(err).Warn("event marshal failed")
		return
	}
	s.events.Broadcast(accountID, out)
}
