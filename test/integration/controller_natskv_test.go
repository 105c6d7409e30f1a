//go:build integration
// +build integration

package integration_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/helmsman"
	"github.com/arloliu/helmsman/accessor"
	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/store/natskv"
	"github.com/arloliu/helmsman/test/testutil"
	helmtest "github.com/arloliu/helmsman/testing"
	"github.com/arloliu/helmsman/types"
)

var bucketSeq atomic.Int64

func newNATSStore(t *testing.T, nc *nats.Conn) *natskv.Store {
	t.Helper()
	st, err := natskv.New(context.Background(), nc, natskv.Config{
		Bucket:        fmt.Sprintf("helmsman-it-%d", bucketSeq.Add(1)),
		EphemeralTTL:  2 * time.Second,
		MemoryStorage: true,
	}, natskv.WithLogger(helmtest.NewTestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	return st
}

func newController(t *testing.T, st *natskv.Store) *helmsman.Controller {
	t.Helper()
	cfg := helmsman.TestConfig()
	cfg.Store.Backend = helmsman.BackendNATSKV
	ctrl, err := helmsman.NewController(&cfg, st, helmsman.WithLogger(helmtest.NewTestLogger(t)))
	require.NoError(t, err)

	return ctrl
}

// TestController_NATSKV_FollowsPreferencesAndLiveness runs a controller over
// JetStream KV and checks that preference changes and participant loss both
// reach the computed assignment.
func TestController_NATSKV_FollowsPreferencesAndLiveness(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	_, nc := helmtest.StartEmbeddedNATS(t)
	st := newNATSStore(t, nc)
	da := accessor.New(st)

	fx := testutil.SeedCustomCluster(t, da, "test-cluster", "TestDB", 3, 2)
	p1, p2, p3 := fx.Participants[0], fx.Participants[1], fx.Participants[2]
	partition := testutil.PartitionName("TestDB", 0)

	require.NoError(t, fx.Admin.SetPreferenceMap(ctx, fx.Name, "TestDB", partition, map[types.ParticipantID]types.State{
		p1: model.StateMaster,
		p2: model.StateSlave,
	}))

	ctrl := newController(t, st)
	require.NoError(t, ctrl.Start(ctx))
	defer func() { _ = ctrl.Stop(ctx) }()

	replicas := func() map[types.ParticipantID]types.State {
		ra, err := fx.Admin.ResourceAssignment(ctx, fx.Name, "TestDB")
		require.NoError(t, err)
		if ra == nil {
			return nil
		}
		return ra.ReplicaMap(partition)
	}

	require.Eventually(t, func() bool {
		m := replicas()
		return m[p1] == model.StateMaster && m[p2] == model.StateSlave && m[p3] == types.StateDropped
	}, 5*time.Second, 50*time.Millisecond)

	ev, err := fx.Admin.ExternalView(ctx, fx.Name, "TestDB")
	require.NoError(t, err)
	require.NotNil(t, ev)
	testutil.AssertViewState(t, ev, partition, map[types.ParticipantID]types.State{
		p1: model.StateSlave,
		p2: model.StateSlave,
		p3: model.StateSlave,
	})

	// Withdrawing p1 removes it from the assignment.
	require.NoError(t, fx.Announcers[p1].Stop(ctx))
	require.Eventually(t, func() bool {
		m := replicas()
		_, stillThere := m[p1]
		return !stillThere && m[p2] == model.StateSlave
	}, 5*time.Second, 50*time.Millisecond)

	ra, err := fx.Admin.ResourceAssignment(ctx, fx.Name, "TestDB")
	require.NoError(t, err)
	live, err := fx.Admin.LiveParticipants(ctx, fx.Name)
	require.NoError(t, err)
	require.ElementsMatch(t, []types.ParticipantID{p2, p3}, live)
	testutil.AssertOnlyLiveAssigned(t, ra, live)
}

// TestController_NATSKV_PauseResume checks that the pause signal stops and
// resumes reconciliation.
func TestController_NATSKV_PauseResume(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	_, nc := helmtest.StartEmbeddedNATS(t)
	st := newNATSStore(t, nc)
	fx := testutil.SeedCustomCluster(t, accessor.New(st), "test-cluster", "TestDB", 2, 1)

	ctrl := newController(t, st)
	require.NoError(t, ctrl.Start(ctx))
	defer func() { _ = ctrl.Stop(ctx) }()

	require.NoError(t, fx.Admin.PauseCluster(ctx, fx.Name, "maintenance"))
	require.NoError(t, testutil.WaitControllerStates(ctx, ctrl, []types.ControllerState{types.ControllerPaused}, 5*time.Second))

	require.NoError(t, fx.Admin.ResumeCluster(ctx, fx.Name))
	require.NoError(t, testutil.WaitAllControllersState(ctx, []testutil.ControllerWaiter{ctrl}, types.ControllerRunning, 5*time.Second))
}
