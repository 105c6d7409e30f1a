package accessor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/store/memory"
	"github.com/arloliu/helmsman/types"
)

var kb = NewKeyBuilder("testcluster")

func newAccessor(t *testing.T, st store.Store, opts ...Option) *DataAccessor {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewTest(t))}, opts...)

	return New(st, opts...)
}

func idealState(resource types.ResourceID, partitions int) *model.IdealState {
	is := model.NewIdealState(resource)
	is.SetStateModelDefID(model.MasterSlaveModel)
	is.SetRebalanceMode(model.RebalanceModeCustomized)
	is.SetNumPartitions(partitions)

	return is
}

func TestCreateProperty(t *testing.T) {
	ctx := context.Background()
	da := newAccessor(t, memory.New())

	require.NoError(t, da.CreateProperty(ctx, kb.IdealState("TestDB"), idealState("TestDB", 4)))

	err := da.CreateProperty(ctx, kb.IdealState("TestDB"), idealState("TestDB", 8))
	require.ErrorIs(t, err, types.ErrAlreadyExists)

	is, err := GetAs[*model.IdealState](ctx, da, kb.IdealState("TestDB"))
	require.NoError(t, err)
	require.Equal(t, 4, is.NumPartitions())
}

func TestSetProperty(t *testing.T) {
	ctx := context.Background()
	da := newAccessor(t, memory.New())

	require.NoError(t, da.SetProperty(ctx, kb.IdealState("TestDB"), idealState("TestDB", 4)))
	require.NoError(t, da.SetProperty(ctx, kb.IdealState("TestDB"), idealState("TestDB", 8)))

	is, err := GetAs[*model.IdealState](ctx, da, kb.IdealState("TestDB"))
	require.NoError(t, err)
	require.Equal(t, 8, is.NumPartitions())
}

func TestUpdateProperty(t *testing.T) {
	ctx := context.Background()
	da := newAccessor(t, memory.New())

	cs := model.NewCurrentState("TestDB")
	cs.SetSessionID("s1")
	cs.SetState("TestDB_0", model.StateMaster)
	key := kb.CurrentState("p1", "s1", "TestDB")
	require.NoError(t, da.UpdateProperty(ctx, key, cs))

	delta := model.NewCurrentState("TestDB")
	delta.SetState("TestDB_1", model.StateSlave)
	require.NoError(t, da.UpdateProperty(ctx, key, delta))

	got, err := GetAs[*model.CurrentState](ctx, da, key)
	require.NoError(t, err)
	require.Equal(t, types.SessionID("s1"), got.SessionID())
	require.Equal(t, map[types.PartitionID]types.State{
		"TestDB_0": model.StateMaster,
		"TestDB_1": model.StateSlave,
	}, got.PartitionStateMap())
}

func TestRemoveProperty(t *testing.T) {
	ctx := context.Background()
	da := newAccessor(t, memory.New())

	require.NoError(t, da.SetProperty(ctx, kb.CurrentState("p1", "s1", "TestDB"), model.NewCurrentState("TestDB")))
	require.NoError(t, da.SetProperty(ctx, kb.CurrentState("p1", "s1", "OtherDB"), model.NewCurrentState("OtherDB")))

	require.NoError(t, da.RemoveProperty(ctx, kb.CurrentStates("p1", "s1")))

	names, err := da.ChildNames(ctx, kb.CurrentStates("p1", "s1"))
	require.NoError(t, err)
	require.Empty(t, names)

	err = da.RemoveProperty(ctx, kb.CurrentStates("p1", "s1"))
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestGetProperty(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	da := newAccessor(t, st)

	t.Run("missing is absent", func(t *testing.T) {
		p, err := da.GetProperty(ctx, kb.IdealState("Missing"))
		require.NoError(t, err)
		require.Nil(t, p)

		is, err := GetAs[*model.IdealState](ctx, da, kb.IdealState("Missing"))
		require.NoError(t, err)
		require.Nil(t, is)
	})

	t.Run("undecodable is absent", func(t *testing.T) {
		rec := types.NewRecord("Broken")
		rec.SetSimpleField(model.FieldInitialState, "OFFLINE")
		require.NoError(t, st.Set(ctx, "/testcluster/STATEMODELDEFS/Broken", rec, store.Persistent))

		p, err := da.GetProperty(ctx, kb.StateModelDef("Broken"))
		require.NoError(t, err)
		require.Nil(t, p)
	})

	t.Run("unregistered type is absent", func(t *testing.T) {
		require.NoError(t, st.Set(ctx, "/testcluster/CONTROLLER/PAUSE", types.NewRecord(model.PauseID), store.Persistent))
		bare := newAccessor(t, st, WithRegistry(NewRegistry()))

		p, err := bare.GetProperty(ctx, kb.Pause())
		require.NoError(t, err)
		require.Nil(t, p)
	})

	t.Run("wrong type assertion is absent", func(t *testing.T) {
		require.NoError(t, da.SetProperty(ctx, kb.IdealState("TestDB"), idealState("TestDB", 1)))

		ev, err := GetAs[*model.ExternalView](ctx, da, kb.IdealState("TestDB"))
		require.NoError(t, err)
		require.Nil(t, ev)
	})

	t.Run("timeout is absent", func(t *testing.T) {
		slow := newAccessor(t, &blockingStore{Store: st}, WithOperationTimeout(20*time.Millisecond))

		p, err := slow.GetProperty(ctx, kb.IdealState("TestDB"))
		require.NoError(t, err)
		require.Nil(t, p)
	})

	t.Run("caller cancellation is an error", func(t *testing.T) {
		slow := newAccessor(t, &blockingStore{Store: st}, WithOperationTimeout(time.Minute))
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := slow.GetProperty(cctx, kb.IdealState("TestDB"))
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("too many parameters", func(t *testing.T) {
		key := PropertyKey{Type: IdealStates, Cluster: "testcluster", Params: []string{"a", "b"}}
		_, err := da.GetProperty(ctx, key)
		require.ErrorIs(t, err, types.ErrInvalidPropertyKey)
	})
}

func TestChildValues(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	da := newAccessor(t, st)

	for _, def := range model.DefaultStateModels() {
		require.NoError(t, da.SetProperty(ctx, kb.StateModelDef(def.ID()), def))
	}
	broken := types.NewRecord("Broken")
	require.NoError(t, st.Set(ctx, "/testcluster/STATEMODELDEFS/Broken", broken, store.Persistent))

	values, err := da.ChildValues(ctx, kb.StateModelDefs())
	require.NoError(t, err)
	require.Len(t, values, 4)
	nils := 0
	for _, v := range values {
		if v == nil {
			nils++
		}
	}
	require.Equal(t, 1, nils)

	byID, err := ChildValuesMapAs[*model.StateModelDefinition](ctx, da, kb.StateModelDefs())
	require.NoError(t, err)
	require.Len(t, byID, 3)
	require.Equal(t, model.StateMaster, byID["MasterSlave"].StatesPriorityList()[0])

	names, err := da.ChildNames(ctx, kb.StateModelDefs())
	require.NoError(t, err)
	require.Equal(t, []string{"Broken", "LeaderStandby", "MasterSlave", "OnlineOffline"}, names)
}

func TestBatchDerivesOptionPerItem(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	da := newAccessor(t, st)

	batchKeys := []PropertyKey{
		kb.LiveInstance("p1"),
		kb.InstanceConfig("p1"),
	}
	props := []model.Property{
		model.NewLiveInstance("p1", "s1"),
		model.NewInstanceConfig("p1"),
	}

	ok, err := da.CreateChildren(ctx, batchKeys, props)
	require.NoError(t, err)
	require.Equal(t, []bool{true, true}, ok)

	require.Equal(t, 1, st.ExpireEphemeral(), "only the live instance is ephemeral")

	li, err := GetAs[*model.LiveInstance](ctx, da, kb.LiveInstance("p1"))
	require.NoError(t, err)
	require.Nil(t, li)

	cfg, err := GetAs[*model.InstanceConfig](ctx, da, kb.InstanceConfig("p1"))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	t.Run("per item failures", func(t *testing.T) {
		ok, err := da.CreateChildren(ctx, batchKeys, props)
		require.NoError(t, err)
		require.Equal(t, []bool{true, false}, ok)

		ok, err = da.SetChildren(ctx, batchKeys, props)
		require.NoError(t, err)
		require.Equal(t, []bool{true, true}, ok)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := da.SetChildren(ctx, batchKeys, props[:1])
		require.ErrorIs(t, err, types.ErrBatchMismatch)
	})
}

func TestStoreMetrics(t *testing.T) {
	ctx := context.Background()
	rec := &recordingMetrics{}
	da := newAccessor(t, memory.New(), WithMetrics(rec))

	require.NoError(t, da.SetProperty(ctx, kb.IdealState("TestDB"), idealState("TestDB", 1)))
	_, err := da.GetProperty(ctx, kb.IdealState("TestDB"))
	require.NoError(t, err)
	_, err = da.GetProperty(ctx, kb.IdealState("Missing"))
	require.NoError(t, err)
	require.Error(t, da.RemoveProperty(ctx, kb.IdealState("Missing")))

	require.Equal(t, []string{"set:true", "get:true", "get:true", "remove:false"}, rec.ops())
}

// blockingStore blocks reads until the context is done.
type blockingStore struct {
	*memory.Store
}

func (s *blockingStore) Get(ctx context.Context, _ string, _ store.Option) (*types.Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingMetrics struct {
	mu     sync.Mutex
	events []string
}

func (m *recordingMetrics) RecordStoreOperation(operation string, _ float64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.events = append(m.events, operation+":true")
	} else {
		m.events = append(m.events, operation+":false")
	}
}

func (m *recordingMetrics) ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.events...)
}
