package testutil

import (
	"testing"

	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/types"
)

// AssertOnlyLiveAssigned verifies that every participant holding a state other
// than DROPPED in the assignment is live.
//
// Parameters:
//   - t: testing handle
//   - ra: computed resource assignment
//   - live: currently live participants
func AssertOnlyLiveAssigned(t *testing.T, ra *model.ResourceAssignment, live []types.ParticipantID) {
	t.Helper()

	alive := make(map[types.ParticipantID]struct{}, len(live))
	for _, p := range live {
		alive[p] = struct{}{}
	}

	for _, partition := range ra.MappedPartitions() {
		for p, state := range ra.ReplicaMap(partition) {
			if state == types.StateDropped {
				continue
			}
			if _, ok := alive[p]; !ok {
				t.Fatalf("partition %s assigns %s to participant %s which is not live", partition, state, p)
			}
		}
	}
}

// AssertViewState verifies that the external view publishes exactly want for
// one partition.
func AssertViewState(t *testing.T, ev *model.ExternalView, partition types.PartitionID, want map[types.ParticipantID]types.State) {
	t.Helper()

	got := ev.StateMap(partition)
	if len(got) != len(want) {
		t.Fatalf("partition %s: external view %v, want %v", partition, got, want)
	}
	for p, state := range want {
		if got[p] != state {
			t.Fatalf("partition %s: participant %s is %q in view, want %q", partition, p, got[p], state)
		}
	}
}
