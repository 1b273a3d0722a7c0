// Package schema holds the schema, table and column containers that tenants
// create. Columns may name a code unit; the schema asks the resolver it is
// bound to for that unit when the column is evaluated.
package schema

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"commandr-server/internal/model"
	"commandr-server/internal/unit"
)

// UnitResolver is the lookup a schema's columns use to find their units.
type UnitResolver interface {
	Resolve(name string) (*unit.Unit, error)
}

type Table struct {
	ID       string
	Name     string
	SchemaID string
}

type Column struct {
	ID       string
	Name     string
	Type     string
	TableID  string
	SchemaID string
	// Unit names the code unit computing this column, empty for data columns.
	Unit string
}

type Schema struct {
	ID   string
	Name string

	mu       sync.RWMutex
	tables   map[string]*Table
	columns  map[string]*Column
	order    []string
	resolver UnitResolver
}

func New(name string) *Schema {
	return &Schema{
		ID:      uuid.NewString(),
		Name:    name,
		tables:  make(map[string]*Table),
		columns: make(map[string]*Column),
	}
}

// Bind sets the resolver used to look up column units.
func (s *Schema) Bind(r UnitResolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolver = r
}

func (s *Schema) Resolver() UnitResolver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolver
}

func (s *Schema) CreateTable(name string) (*Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Wrap(model.ErrInvalidArgument, "missing table name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tables {
		if strings.EqualFold(t.Name, name) {
			return nil, errors.Wrapf(model.ErrNameConflict, "table %q", name)
		}
	}
	t := &Table{ID: uuid.NewString(), Name: name, SchemaID: s.ID}
	s.tables[t.ID] = t
	s.order = append(s.order, t.ID)
	return t, nil
}

func (s *Schema) CreateColumn(tableID, name, typ, unitName string) (*Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Wrap(model.ErrInvalidArgument, "missing column name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[tableID]; !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "table %s", tableID)
	}
	for _, c := range s.columns {
		if c.TableID == tableID && strings.EqualFold(c.Name, name) {
			return nil, errors.Wrapf(model.ErrNameConflict, "column %q", name)
		}
	}
	c := &Column{ID: uuid.NewString(), Name: name, Type: typ, TableID: tableID, SchemaID: s.ID, Unit: unitName}
	s.columns[c.ID] = c
	return c, nil
}

func (s *Schema) Table(id string) (*Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[id]
	return t, ok
}

func (s *Schema) TableByName(name string) (*Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return nil, false
}

func (s *Schema) Column(id string) (*Column, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.columns[id]
	return c, ok
}

// Tables lists tables in creation order.
func (s *Schema) Tables() []*Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Table, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.tables[id])
	}
	return result
}

func (s *Schema) Columns(tableID string) []*Column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Column, 0)
	for _, c := range s.columns {
		if tableID == "" || c.TableID == tableID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TableID == result[j].TableID {
			return result[i].Name < result[j].Name
		}
		return result[i].TableID < result[j].TableID
	})
	return result
}

// DeleteTable removes the table and its columns.
func (s *Schema) DeleteTable(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[id]; !ok {
		return false
	}
	delete(s.tables, id)
	for cid, c := range s.columns {
		if c.TableID == id {
			delete(s.columns, cid)
		}
	}
	for i, tid := range s.order {
		if tid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Schema) DeleteColumn(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.columns[id]; !ok {
		return false
	}
	delete(s.columns, id)
	return true
}

// Evaluator returns a fresh evaluator for a computed column, resolved through
// the schema's bound resolver.
func (s *Schema) Evaluator(columnID string) (unit.Evaluator, error) {
	s.mu.RLock()
	c, ok := s.columns[columnID]
	r := s.resolver
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "column %s", columnID)
	}
	if c.Unit == "" {
		return nil, errors.Wrapf(model.ErrInvalidArgument, "column %q has no unit", c.Name)
	}
	if r == nil {
		return nil, errors.Wrapf(model.ErrUnitNotFound, "schema %s is not bound", s.ID)
	}
	u, err := r.Resolve(c.Unit)
	if err != nil {
		return nil, err
	}
	return u.New()
}
