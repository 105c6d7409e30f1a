package model

import (
	"strconv"
	"time"

	"github.com/arloliu/helmsman/types"
)

// MessageTypeStateTransition is the MSG_TYPE of state transition requests.
const MessageTypeStateTransition = "STATE_TRANSITION"

// Message processing states.
const (
	MessageStateNew       = "new"
	MessageStateRead      = "read"
	MessageStateCompleted = "completed"
)

// Message is a request addressed to one participant, such as moving a
// replica from one state to another.
type Message struct {
	record *types.Record
}

var _ Property = (*Message)(nil)

// NewStateTransitionMessage creates a new STATE_TRANSITION message.
//
// Parameters:
//   - id: Message id, unique within the target's message queue
//   - resource: Resource of the replica
//   - partition: Partition of the replica
//   - target: Participant that performs the transition
//   - session: Target session the message is valid for
//   - transition: Requested state change
//
// Returns:
//   - *Message: Message in the "new" state, stamped with the current time
func NewStateTransitionMessage(
	id string,
	resource types.ResourceID,
	partition types.PartitionID,
	target types.ParticipantID,
	session types.SessionID,
	transition types.Transition,
) *Message {
	rec := types.NewRecord(id)
	rec.SetSimpleField(FieldMessageID, id)
	rec.SetSimpleField(FieldMessageType, MessageTypeStateTransition)
	rec.SetSimpleField(FieldMessageState, MessageStateNew)
	rec.SetSimpleField(FieldResourceName, string(resource))
	rec.SetSimpleField(FieldPartitionName, string(partition))
	rec.SetSimpleField(FieldTargetName, string(target))
	rec.SetSimpleField(FieldTargetSessionID, string(session))
	rec.SetSimpleField(FieldFromState, string(transition.From))
	rec.SetSimpleField(FieldToState, string(transition.To))
	rec.SetSimpleField(FieldCreateTimestamp, strconv.FormatInt(time.Now().UnixMilli(), 10))

	return &Message{record: rec}
}

// MessageFromRecord wraps a decoded record.
func MessageFromRecord(rec *types.Record) (*Message, error) {
	if err := requireRecord("message", rec); err != nil {
		return nil, err
	}

	return &Message{record: rec}, nil
}

// Record returns the underlying record.
func (m *Message) Record() *types.Record {
	return m.record
}

// ID returns the message id.
func (m *Message) ID() string {
	return m.record.ID
}

// Type returns MSG_TYPE.
func (m *Message) Type() string {
	return m.record.SimpleFields[FieldMessageType]
}

// IsStateTransition reports whether the message requests a state transition.
func (m *Message) IsStateTransition() bool {
	return m.Type() == MessageTypeStateTransition
}

// State returns MSG_STATE.
func (m *Message) State() string {
	return m.record.SimpleFields[FieldMessageState]
}

// SetState sets MSG_STATE.
func (m *Message) SetState(state string) {
	m.record.SetSimpleField(FieldMessageState, state)
}

// ResourceID returns RESOURCE_NAME.
func (m *Message) ResourceID() types.ResourceID {
	return types.ResourceID(m.record.SimpleFields[FieldResourceName])
}

// PartitionID returns PARTITION_NAME.
func (m *Message) PartitionID() types.PartitionID {
	return types.PartitionID(m.record.SimpleFields[FieldPartitionName])
}

// TargetName returns the participant the message is addressed to.
func (m *Message) TargetName() types.ParticipantID {
	return types.ParticipantID(m.record.SimpleFields[FieldTargetName])
}

// TargetSessionID returns the target session the message is valid for.
func (m *Message) TargetSessionID() types.SessionID {
	return types.SessionID(m.record.SimpleFields[FieldTargetSessionID])
}

// FromState returns FROM_STATE.
func (m *Message) FromState() types.State {
	return types.State(m.record.SimpleFields[FieldFromState])
}

// ToState returns TO_STATE.
func (m *Message) ToState() types.State {
	return types.State(m.record.SimpleFields[FieldToState])
}

// CreateTime returns CREATE_TIMESTAMP, or the zero time when unset.
func (m *Message) CreateTime() time.Time {
	ms, err := strconv.ParseInt(m.record.SimpleFields[FieldCreateTimestamp], 10, 64)
	if err != nil {
		return time.Time{}
	}

	return time.UnixMilli(ms)
}

// PauseID is the record id of the pause signal.
const PauseID = "pause"

// PauseSignal pauses reconciliation while present in the store.
type PauseSignal struct {
	record *types.Record
}

var _ Property = (*PauseSignal)(nil)

// NewPauseSignal creates a pause signal with an operator supplied reason.
func NewPauseSignal(reason string) *PauseSignal {
	p := &PauseSignal{record: types.NewRecord(PauseID)}
	p.record.SetSimpleField(FieldReason, reason)

	return p
}

// PauseSignalFromRecord wraps a decoded record.
func PauseSignalFromRecord(rec *types.Record) (*PauseSignal, error) {
	if err := requireRecord("pause signal", rec); err != nil {
		return nil, err
	}

	return &PauseSignal{record: rec}, nil
}

// Record returns the underlying record.
func (p *PauseSignal) Record() *types.Record {
	return p.record
}

// Reason returns why the cluster was paused.
func (p *PauseSignal) Reason() string {
	return p.record.SimpleFields[FieldReason]
}
