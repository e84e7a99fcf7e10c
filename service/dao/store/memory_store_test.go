package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/ssi/service/dao"
)

type record struct {
	ID    string
	Group string
}

func newRecordStore() *MemoryStore[string, record] {
	return NewMemoryStore[string, record](
		func(r *record) string { return r.ID },
		func(r *record, name string) (string, bool) {
			if name == "group" {
				return r.Group, true
			}
			return "", false
		},
	)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := newRecordStore()

	assert.ErrorIs(t, store.Save(ctx, nil), dao.ErrNilEntity)
	assert.ErrorIs(t, store.Save(ctx, &record{}), dao.ErrInvalidID)

	require.NoError(t, store.Save(ctx, &record{ID: "a", Group: "x"}))
	require.NoError(t, store.Save(ctx, &record{ID: "b", Group: "y"}))
	require.NoError(t, store.Save(ctx, &record{ID: "c", Group: "x"}))
	assert.Equal(t, 3, store.Count())

	loaded, err := store.Load(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "y", loaded.Group)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	var testCases = []struct {
		description string
		params      []*dao.Parameter
		expect      int
	}{
		{description: "all", expect: 3},
		{description: "single value", params: []*dao.Parameter{dao.NewParameter("group", "x")}, expect: 2},
		{description: "any of", params: []*dao.Parameter{dao.NewParameter("group", "x", "y")}, expect: 3},
		{description: "unknown field", params: []*dao.Parameter{dao.NewParameter("owner", "x")}, expect: 0},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			list, err := store.List(ctx, testCase.params...)
			require.NoError(t, err)
			assert.Len(t, list, testCase.expect)
		})
	}

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"))
	assert.Equal(t, 2, store.Count())
}
