package hash

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/helmsman/types"
)

func TestRecord(t *testing.T) {
	t.Run("equal content hashes equally", func(t *testing.T) {
		a := types.NewRecord("TestDB")
		a.SetMapField("TestDB_0", map[string]string{"p1": "MASTER", "p2": "SLAVE"})
		a.SetSimpleField("k", "v")

		b := types.NewRecord("TestDB")
		b.SetSimpleField("k", "v")
		b.SetMapField("TestDB_0", map[string]string{"p2": "SLAVE", "p1": "MASTER"})

		sa, err := Record(a)
		require.NoError(t, err)
		sb, err := Record(b)
		require.NoError(t, err)
		require.Equal(t, sa, sb)
	})

	t.Run("different content hashes differently", func(t *testing.T) {
		a := types.NewRecord("TestDB")
		a.SetMapField("TestDB_0", map[string]string{"p1": "MASTER"})
		b := types.NewRecord("TestDB")
		b.SetMapField("TestDB_0", map[string]string{"p1": "SLAVE"})

		sa, err := Record(a)
		require.NoError(t, err)
		sb, err := Record(b)
		require.NoError(t, err)
		require.NotEqual(t, sa, sb)
	})

	t.Run("nil record", func(t *testing.T) {
		_, err := Record(nil)
		require.Error(t, err)
	})
}

func TestCache(t *testing.T) {
	c := NewCache()
	require.False(t, c.Unchanged("/a", 1))

	c.Store("/a", 1)
	c.Store("/b", 2)
	require.True(t, c.Unchanged("/a", 1))
	require.False(t, c.Unchanged("/a", 3))
	require.Equal(t, 2, c.Len())

	c.Forget("/a")
	require.False(t, c.Unchanged("/a", 1))

	c.Reset()
	require.Equal(t, 0, c.Len())
}
