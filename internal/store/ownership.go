package store

import (
	"sort"

	"github.com/pkg/errors"

	"commandr-server/internal/model"
	"commandr-server/internal/schema"
)

// Attach makes acc the owner of sc for the schema's lifetime and binds sc to
// the account's resolver.
func (s *Store) Attach(acc *Account, sc *schema.Schema) error {
	if acc == nil || sc == nil {
		return errors.Wrap(model.ErrInvalidArgument, "attach: missing account or schema")
	}
	s.mu.Lock()
	err := s.attachLocked(acc, sc)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	acc.Record(model.KindSchema, model.OpCreate)
	s.publish(acc.ID, EventSchemaAttached, sc.ID, sc.Name)
	return nil
}

func (s *Store) attachLocked(acc *Account, sc *schema.Schema) error {
	if s.accounts[acc.ID] != acc {
		return errors.Wrapf(model.ErrNotFound, "account %s", acc.ID)
	}
	if _, owned := s.schemaOwners[sc.ID]; owned {
		return errors.Wrapf(model.ErrAlreadyAttached, "schema %s", sc.ID)
	}
	sc.Bind(acc.Resolver())
	s.schemas[sc.ID] = sc
	s.schemaOwners[sc.ID] = acc.ID
	return nil
}

// Detach removes the schema's ownership edge; its tables and columns become
// unreachable with it.
func (s *Store) Detach(schemaID string) error {
	s.mu.Lock()
	ownerID, ok := s.schemaOwners[schemaID]
	if !ok {
		s.mu.Unlock()
		return errors.Wrapf(model.ErrNotFound, "schema %s", schemaID)
	}
	sc := s.schemas[schemaID]
	delete(s.schemaOwners, schemaID)
	delete(s.schemas, schemaID)
	owner := s.accounts[ownerID]
	s.mu.Unlock()

	if owner != nil {
		owner.Record(model.KindSchema, model.OpDelete)
	}
	s.publish(ownerID, EventSchemaDetached, schemaID, sc.Name)
	return nil
}

// SchemasOf lists the account's schemas ordered by name.
func (s *Store) SchemasOf(accountID string) []*schema.Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schemasOfLocked(accountID)
}

func (s *Store) schemasOfLocked(accountID string) []*schema.Schema {
	result := make([]*schema.Schema, 0)
	for schemaID, owner := range s.schemaOwners {
		if owner == accountID {
			result = append(result, s.schemas[schemaID])
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].ID < result[j].ID
		}
		return result[i].Name < result[j].Name
	})
	return result
}

func (s *Store) SchemaOf(accountID, schemaID string) (*schema.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.schemaOwners[schemaID] != accountID {
		return nil, errors.Wrapf(model.ErrNotFound, "schema %s", schemaID)
	}
	return s.schemas[schemaID], nil
}

// TableOf searches only the account's schemas, so a table owned by another
// account is reported exactly like a missing one.
func (s *Store) TableOf(accountID, tableID string) (*schema.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.schemasOfLocked(accountID) {
		if t, ok := sc.Table(tableID); ok {
			return t, nil
		}
	}
	return nil, errors.Wrapf(model.ErrNotFound, "table %s", tableID)
}

func (s *Store) ColumnOf(accountID, columnID string) (*schema.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.schemasOfLocked(accountID) {
		if c, ok := sc.Column(columnID); ok {
			return c, nil
		}
	}
	return nil, errors.Wrapf(model.ErrNotFound, "column %s", columnID)
}
