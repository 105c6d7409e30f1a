package model

import (
	"slices"
	"strconv"

	"github.com/arloliu/helmsman/types"
)

// LiveInstance announces that a participant is connected.
//
// The node is ephemeral: it disappears when the participant's session ends.
type LiveInstance struct {
	record *types.Record
}

var _ Property = (*LiveInstance)(nil)

// NewLiveInstance creates the live node of a participant.
func NewLiveInstance(participant types.ParticipantID, session types.SessionID) *LiveInstance {
	li := &LiveInstance{record: types.NewRecord(string(participant))}
	li.record.SetSimpleField(FieldSessionID, string(session))

	return li
}

// LiveInstanceFromRecord wraps a decoded record.
func LiveInstanceFromRecord(rec *types.Record) (*LiveInstance, error) {
	if err := requireRecord("live instance", rec); err != nil {
		return nil, err
	}

	return &LiveInstance{record: rec}, nil
}

// Record returns the underlying record.
func (li *LiveInstance) Record() *types.Record {
	return li.record
}

// ParticipantID returns the live participant.
func (li *LiveInstance) ParticipantID() types.ParticipantID {
	return types.ParticipantID(li.record.ID)
}

// SessionID returns the participant's current session.
func (li *LiveInstance) SessionID() types.SessionID {
	return types.SessionID(li.record.SimpleFields[FieldSessionID])
}

// ProcessName returns the "pid@host" style process identity, if set.
func (li *LiveInstance) ProcessName() string {
	return li.record.SimpleFields[FieldLiveInstance]
}

// SetProcessName sets LIVE_INSTANCE.
func (li *LiveInstance) SetProcessName(name string) {
	li.record.SetSimpleField(FieldLiveInstance, name)
}

// Version returns the library version the participant runs, if set.
func (li *LiveInstance) Version() string {
	return li.record.SimpleFields[FieldVersion]
}

// SetVersion sets HELIX_VERSION.
func (li *LiveInstance) SetVersion(version string) {
	li.record.SetSimpleField(FieldVersion, version)
}

// InstanceConfig is the persistent configuration of a participant.
type InstanceConfig struct {
	record *types.Record
}

var _ Property = (*InstanceConfig)(nil)

// NewInstanceConfig creates an enabled participant configuration.
func NewInstanceConfig(participant types.ParticipantID) *InstanceConfig {
	cfg := &InstanceConfig{record: types.NewRecord(string(participant))}
	cfg.SetEnabled(true)

	return cfg
}

// InstanceConfigFromRecord wraps a decoded record.
func InstanceConfigFromRecord(rec *types.Record) (*InstanceConfig, error) {
	if err := requireRecord("instance config", rec); err != nil {
		return nil, err
	}

	return &InstanceConfig{record: rec}, nil
}

// Record returns the underlying record.
func (c *InstanceConfig) Record() *types.Record {
	return c.record
}

// ParticipantID returns the configured participant.
func (c *InstanceConfig) ParticipantID() types.ParticipantID {
	return types.ParticipantID(c.record.ID)
}

// Host returns HELIX_HOST.
func (c *InstanceConfig) Host() string {
	return c.record.SimpleFields[FieldHost]
}

// SetHost sets HELIX_HOST.
func (c *InstanceConfig) SetHost(host string) {
	c.record.SetSimpleField(FieldHost, host)
}

// Port returns HELIX_PORT, or 0 when unset.
func (c *InstanceConfig) Port() int {
	return c.record.SimpleFieldInt(FieldPort, 0)
}

// SetPort sets HELIX_PORT.
func (c *InstanceConfig) SetPort(port int) {
	c.record.SetSimpleFieldInt(FieldPort, port)
}

// IsEnabled reports whether the participant may serve replicas. Participants
// are enabled unless HELIX_ENABLED says otherwise.
func (c *InstanceConfig) IsEnabled() bool {
	return c.record.SimpleFieldBool(FieldEnabled, true)
}

// SetEnabled sets HELIX_ENABLED.
func (c *InstanceConfig) SetEnabled(enabled bool) {
	c.record.SetSimpleField(FieldEnabled, strconv.FormatBool(enabled))
}

// DisabledPartitions returns the partitions the participant must not serve.
func (c *InstanceConfig) DisabledPartitions() []types.PartitionID {
	raw := c.record.ListFields[FieldDisabledPartition]
	out := make([]types.PartitionID, len(raw))
	for i, p := range raw {
		out[i] = types.PartitionID(p)
	}

	return out
}

// IsPartitionDisabled reports whether a partition is disabled on the participant.
func (c *InstanceConfig) IsPartitionDisabled(partition types.PartitionID) bool {
	return slices.Contains(c.record.ListFields[FieldDisabledPartition], string(partition))
}

// SetPartitionEnabled enables or disables one partition on the participant.
func (c *InstanceConfig) SetPartitionEnabled(partition types.PartitionID, enabled bool) {
	raw := slices.Clone(c.record.ListFields[FieldDisabledPartition])
	idx := slices.Index(raw, string(partition))
	switch {
	case enabled && idx >= 0:
		raw = slices.Delete(raw, idx, idx+1)
	case !enabled && idx < 0:
		raw = append(raw, string(partition))
	default:
		return
	}
	c.record.SetListField(FieldDisabledPartition, raw)
}

// ClusterConfig holds cluster-wide user settings as simple fields.
type ClusterConfig struct {
	record *types.Record
}

var _ Property = (*ClusterConfig)(nil)

// NewClusterConfig creates an empty configuration for a cluster.
func NewClusterConfig(cluster types.ClusterID) *ClusterConfig {
	return &ClusterConfig{record: types.NewRecord(string(cluster))}
}

// ClusterConfigFromRecord wraps a decoded record.
func ClusterConfigFromRecord(rec *types.Record) (*ClusterConfig, error) {
	if err := requireRecord("cluster config", rec); err != nil {
		return nil, err
	}

	return &ClusterConfig{record: rec}, nil
}

// Record returns the underlying record.
func (c *ClusterConfig) Record() *types.Record {
	return c.record
}

// ClusterID returns the configured cluster.
func (c *ClusterConfig) ClusterID() types.ClusterID {
	return types.ClusterID(c.record.ID)
}

// Get returns one user setting.
func (c *ClusterConfig) Get(key string) (string, bool) {
	return c.record.SimpleField(key)
}

// Set stores one user setting.
func (c *ClusterConfig) Set(key, value string) {
	c.record.SetSimpleField(key, value)
}
