package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"commandr-server/internal/model"
	"commandr-server/internal/unit"
)

type registryResolver struct {
	*unit.Registry
	calls int
}

func (r *registryResolver) Resolve(name string) (*unit.Unit, error) {
	r.calls++
	u, ok := r.Lookup(name)
	if !ok {
		return nil, model.ErrUnitNotFound
	}
	return u, nil
}

func TestSchema_TablesAndColumns(t *testing.T) {
	s := New("Sales")
	orders, err := s.CreateTable("Orders")
	require.NoError(t, err)
	_, err = s.CreateTable("orders")
	require.ErrorIs(t, err, model.ErrNameConflict)

	c, err := s.CreateColumn(orders.ID, "Amount", "Double", "")
	require.NoError(t, err)
	require.Equal(t, s.ID, c.SchemaID)

	_, err = s.CreateColumn("missing", "X", "Double", "")
	require.ErrorIs(t, err, model.ErrNotFound)

	got, ok := s.Table(orders.ID)
	require.True(t, ok)
	require.Same(t, orders, got)

	byName, ok := s.TableByName("ORDERS")
	require.True(t, ok)
	require.Same(t, orders, byName)

	require.True(t, s.DeleteTable(orders.ID))
	_, ok = s.Column(c.ID)
	require.False(t, ok, "columns go with their table")
	require.Empty(t, s.Tables())
}

func TestSchema_EvaluatorUsesBoundResolver(t *testing.T) {
	s := Sample("")
	require.Len(t, s.Tables(), 2)

	table, _ := s.TableByName("My Table")
	var total *Column
	for _, c := range s.Columns(table.ID) {
		if c.Name == "Total" {
			total = c
		}
	}
	require.NotNil(t, total)

	_, err := s.Evaluator(total.ID)
	require.ErrorIs(t, err, model.ErrUnitNotFound, "unbound schema cannot resolve")

	r := &registryResolver{Registry: unit.Builtins()}
	s.Bind(r)
	ev, err := s.Evaluator(total.ID)
	require.NoError(t, err)
	out, err := ev.Evaluate(context.Background(), map[string]interface{}{"values": []interface{}{1.5, 2.5}})
	require.NoError(t, err)
	require.Equal(t, 4.0, out)
	require.Equal(t, 1, r.calls)

	plain := s.Columns(table.ID)[0]
	_, err = s.Evaluator(plain.ID)
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}
