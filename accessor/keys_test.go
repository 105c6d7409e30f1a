package accessor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/types"
)

func TestKeyPaths(t *testing.T) {
	b := NewKeyBuilder("c1")

	tests := []struct {
		name string
		key  PropertyKey
		path string
		opt  store.Option
	}{
		{"ideal states", b.IdealStates(), "/c1/IDEALSTATES", store.Persistent},
		{"ideal state", b.IdealState("TestDB"), "/c1/IDEALSTATES/TestDB", store.Persistent},
		{"state model", b.StateModelDef("MasterSlave"), "/c1/STATEMODELDEFS/MasterSlave", store.Persistent},
		{"constraint", b.Constraint(model.MessageConstraint), "/c1/CONFIGS/CONSTRAINT/MESSAGE_CONSTRAINT", store.Persistent},
		{"cluster config", b.ClusterConfig(), "/c1/CONFIGS/CLUSTER/c1", store.Persistent},
		{"instance config", b.InstanceConfig("p1"), "/c1/CONFIGS/PARTICIPANT/p1", store.Persistent},
		{"live instances", b.LiveInstances(), "/c1/LIVEINSTANCES", store.Ephemeral},
		{"live instance", b.LiveInstance("p1"), "/c1/LIVEINSTANCES/p1", store.Ephemeral},
		{"sessions", b.Sessions("p1"), "/c1/INSTANCES/p1/CURRENTSTATES", store.Persistent},
		{"current states", b.CurrentStates("p1", "s1"), "/c1/INSTANCES/p1/CURRENTSTATES/s1", store.Persistent},
		{"current state", b.CurrentState("p1", "s1", "TestDB"), "/c1/INSTANCES/p1/CURRENTSTATES/s1/TestDB", store.Persistent},
		{"messages", b.Messages("p1"), "/c1/INSTANCES/p1/MESSAGES", store.Persistent},
		{"message", b.Message("p1", "m1"), "/c1/INSTANCES/p1/MESSAGES/m1", store.Persistent},
		{"external view", b.ExternalView("TestDB"), "/c1/EXTERNALVIEW/TestDB", store.Persistent},
		{"assignment", b.ResourceAssignment("TestDB"), "/c1/RESOURCEASSIGNMENTS/TestDB", store.Persistent},
		{"pause", b.Pause(), "/c1/CONTROLLER/PAUSE", store.Persistent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := tt.key.Path()
			require.NoError(t, err)
			require.Equal(t, tt.path, path)
			require.Equal(t, tt.opt, tt.key.Option())
		})
	}
}

func TestKeyPathErrors(t *testing.T) {
	t.Run("too many parameters", func(t *testing.T) {
		key := PropertyKey{Type: Pause, Cluster: "c1", Params: []string{"extra"}}
		_, err := key.Path()
		require.ErrorIs(t, err, types.ErrInvalidPropertyKey)
	})

	t.Run("empty parameter", func(t *testing.T) {
		_, err := NewKeyBuilder("c1").IdealState("").Path()
		require.ErrorIs(t, err, types.ErrInvalidPropertyKey)
	})

	t.Run("missing cluster", func(t *testing.T) {
		_, err := NewKeyBuilder("").IdealStates().Path()
		require.ErrorIs(t, err, types.ErrInvalidPropertyKey)
	})

	t.Run("unknown type", func(t *testing.T) {
		key := PropertyKey{Type: PropertyType(99), Cluster: "c1"}
		_, err := key.Path()
		require.ErrorIs(t, err, types.ErrUnknownPropertyType)
		require.Equal(t, "PropertyType(99)", key.Type.String())
	})
}

func TestPersistenceFlag(t *testing.T) {
	for typ := range propertyTypes {
		if typ == LiveInstances {
			require.False(t, typ.IsPersistent(), typ.String())
			continue
		}
		require.True(t, typ.IsPersistent(), typ.String())
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	for typ := range propertyTypes {
		_, ok := r.decoders[typ]
		require.True(t, ok, "no decoder for %s", typ)
	}

	p, err := r.Decode(ExternalViews, types.NewRecord("TestDB"))
	require.NoError(t, err)
	require.IsType(t, &model.ExternalView{}, p)

	_, err = NewRegistry().Decode(ExternalViews, types.NewRecord("TestDB"))
	require.ErrorIs(t, err, types.ErrUnknownPropertyType)

	clone := r.Clone()
	clone.Register(ExternalViews, func(*types.Record) (model.Property, error) { return nil, types.ErrInvalidRecord })
	_, err = r.Decode(ExternalViews, types.NewRecord("TestDB"))
	require.NoError(t, err)
}
