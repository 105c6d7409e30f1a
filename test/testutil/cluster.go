package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/helmsman/accessor"
	"github.com/arloliu/helmsman/admin"
	"github.com/arloliu/helmsman/liveness"
	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/types"
)

// ClusterFixture is a seeded cluster with announced participants.
type ClusterFixture struct {
	Name         types.ClusterID
	Accessor     *accessor.DataAccessor
	Admin        *admin.Admin
	Participants []types.ParticipantID
	Announcers   map[types.ParticipantID]*liveness.Announcer
}

// SeedCustomCluster creates a MasterSlave cluster with n participants and one
// CUSTOMIZED resource of the given partition count. Every participant is
// announced and reports SLAVE for every partition. Announcers are stopped on
// test cleanup.
//
// Parameters:
//   - t: testing handle
//   - da: accessor over the store under test
//   - name: cluster name
//   - resource: resource name; partitions are named "<resource>_<i>"
//   - participants: participant count
//   - partitions: partition count
//   - opts: announcer options, for example liveness.WithRefreshInterval
//
// Returns:
//   - *ClusterFixture: the seeded cluster
func SeedCustomCluster(
	t *testing.T,
	da *accessor.DataAccessor,
	name types.ClusterID,
	resource types.ResourceID,
	participants int,
	partitions int,
	opts ...liveness.Option,
) *ClusterFixture {
	t.Helper()
	ctx := context.Background()

	fx := &ClusterFixture{
		Name:       name,
		Accessor:   da,
		Admin:      admin.New(da),
		Announcers: make(map[types.ParticipantID]*liveness.Announcer, participants),
	}

	require.NoError(t, fx.Admin.AddCluster(ctx, name))
	require.NoError(t, fx.Admin.AddStateModelDef(ctx, name, model.MasterSlave()))
	require.NoError(t, fx.Admin.AddResource(ctx, name, resource, admin.ResourceSpec{
		Partitions: partitions,
		StateModel: model.MasterSlaveModel,
		Mode:       model.RebalanceModeCustomized,
	}))

	for i := range participants {
		p := types.ParticipantID(fmt.Sprintf("localhost_%d", 12913+i))
		require.NoError(t, fx.Admin.AddParticipant(ctx, name, model.NewInstanceConfig(p)))

		ann := liveness.New(da, name, p, opts...)
		require.NoError(t, ann.Start(ctx))
		t.Cleanup(func() { _ = ann.Stop(context.Background()) })

		for j := range partitions {
			require.NoError(t, ann.ReportState(ctx, resource, model.MasterSlaveModel, PartitionName(resource, j), model.StateSlave))
		}

		fx.Participants = append(fx.Participants, p)
		fx.Announcers[p] = ann
	}

	return fx
}

// PartitionName returns the name AddResource gives to partition i.
func PartitionName(resource types.ResourceID, i int) types.PartitionID {
	return types.PartitionID(fmt.Sprintf("%s_%d", resource, i))
}
