package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionID(t *testing.T) {
	t.Run("builds scoped partition id", func(t *testing.T) {
		require.Equal(t, PartitionID("TestDB_3"), PartitionIDFor("TestDB", "3"))
	})

	t.Run("extracts resource from last separator", func(t *testing.T) {
		require.Equal(t, ResourceID("my_db"), PartitionIDFor("my_db", "0").ResourceID())
	})

	t.Run("id without separator is its own resource", func(t *testing.T) {
		require.Equal(t, ResourceID("standalone"), PartitionID("standalone").ResourceID())
	})
}

func TestScope(t *testing.T) {
	require.Equal(t, "CLUSTER:c1", ClusterScope("c1").String())
	require.Equal(t, "RESOURCE:db", ResourceScope("db").String())
	require.Equal(t, "PARTICIPANT:localhost_12918", ParticipantScope("localhost_12918").String())
	require.Equal(t, ScopePartition, PartitionScope("db_0").Type)
}
