package model

import (
	"fmt"
	"slices"

	"github.com/arloliu/helmsman/types"
)

// Property is a cluster property backed by a Record.
//
// Every property in this package wraps the record it was decoded from, so
// fields it does not interpret survive a read-modify-write cycle.
type Property interface {
	// Record returns the record holding the property fields.
	Record() *types.Record
}

// Record field keys shared by the cluster properties.
const (
	FieldBucketSize          = "BUCKET_SIZE"
	FieldBatchMessageMode    = "BATCH_MESSAGE_MODE"
	FieldNumPartitions       = "NUM_PARTITIONS"
	FieldReplicas            = "REPLICAS"
	FieldStateModelDef       = "STATE_MODEL_DEF"
	FieldSessionID           = "SESSION_ID"
	FieldEnabled             = "HELIX_ENABLED"
	FieldHost                = "HELIX_HOST"
	FieldPort                = "HELIX_PORT"
	FieldDisabledPartition   = "HELIX_DISABLED_PARTITION"
	FieldRebalanceMode       = "REBALANCE_MODE"
	FieldRebalancerClassName = "REBALANCER_CLASS_NAME"
	FieldCurrentState        = "CURRENT_STATE"
	FieldLiveInstance        = "LIVE_INSTANCE"
	FieldVersion             = "HELIX_VERSION"
	FieldMessageID           = "MSG_ID"
	FieldMessageType         = "MSG_TYPE"
	FieldMessageState        = "MSG_STATE"
	FieldFromState           = "FROM_STATE"
	FieldToState             = "TO_STATE"
	FieldPartitionName       = "PARTITION_NAME"
	FieldResourceName        = "RESOURCE_NAME"
	FieldTargetName          = "TGT_NAME"
	FieldTargetSessionID     = "TGT_SESSION_ID"
	FieldCreateTimestamp     = "CREATE_TIMESTAMP"
	FieldReason              = "REASON"

	// TimeoutSuffix marks simple fields that carry a transition timeout in milliseconds.
	TimeoutSuffix = "_TIMEOUT"
)

// requireRecord rejects nil records handed to a decoder.
func requireRecord(kind string, rec *types.Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil %s record", types.ErrInvalidRecord, kind)
	}

	return nil
}

// stateMap converts a raw map field into participant states.
func stateMap(raw map[string]string) map[types.ParticipantID]types.State {
	out := make(map[types.ParticipantID]types.State, len(raw))
	for p, s := range raw {
		out[types.ParticipantID(p)] = types.State(s)
	}

	return out
}

// rawStateMap converts participant states into a raw map field.
func rawStateMap(m map[types.ParticipantID]types.State) map[string]string {
	out := make(map[string]string, len(m))
	for p, s := range m {
		out[string(p)] = string(s)
	}

	return out
}

// sortedPartitions returns the keys of m as sorted partition ids.
func sortedPartitions[V any](m map[string]V) []types.PartitionID {
	out := make([]types.PartitionID, 0, len(m))
	for k := range m {
		out = append(out, types.PartitionID(k))
	}
	slices.Sort(out)

	return out
}

