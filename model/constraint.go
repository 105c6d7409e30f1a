package model

import (
	"fmt"
	"maps"
	"slices"

	"github.com/arloliu/helmsman/types"
)

// ConstraintType groups constraints by what they limit.
type ConstraintType string

const (
	// StateConstraint limits how many replicas of a partition may be in a state.
	StateConstraint ConstraintType = "STATE_CONSTRAINT"

	// MessageConstraint limits how many transitions may be in flight.
	MessageConstraint ConstraintType = "MESSAGE_CONSTRAINT"
)

// ConstraintAttribute names one attribute of a constraint rule.
type ConstraintAttribute string

const (
	AttrState           ConstraintAttribute = "STATE"
	AttrStateModel      ConstraintAttribute = "STATE_MODEL"
	AttrMessageType     ConstraintAttribute = "MESSAGE_TYPE"
	AttrTransition      ConstraintAttribute = "TRANSITION"
	AttrResource        ConstraintAttribute = "RESOURCE"
	AttrInstance        ConstraintAttribute = "INSTANCE"
	AttrPartition       ConstraintAttribute = "PARTITION"
	AttrConstraintValue ConstraintAttribute = "CONSTRAINT_VALUE"
)

var knownAttributes = []ConstraintAttribute{
	AttrState, AttrStateModel, AttrMessageType, AttrTransition,
	AttrResource, AttrInstance, AttrPartition, AttrConstraintValue,
}

// ConstraintID identifies one constraint item within its ClusterConstraints.
type ConstraintID string

// ConstraintIDFor builds the id of a constraint on item (a state or a
// transition) of a state model within a scope.
//
// Example:
//
//	model.ConstraintIDFor(types.ClusterScope("c1"), "MasterSlave", model.StateMaster)
//	// "CLUSTER:c1|MasterSlave|MASTER"
func ConstraintIDFor(scope types.Scope, smd types.StateModelDefID, item fmt.Stringer) ConstraintID {
	return ConstraintID(scope.String() + "|" + string(smd) + "|" + item.String())
}

// ConstraintItem is one constraint rule: a set of attributes that must all
// match, plus the constraint value.
type ConstraintItem struct {
	attributes map[ConstraintAttribute]string
	value      string
}

// NewConstraintItem builds an item from raw attribute names.
//
// CONSTRAINT_VALUE becomes the item value. Unknown attribute names are
// ignored.
func NewConstraintItem(raw map[string]string) *ConstraintItem {
	item := &ConstraintItem{attributes: make(map[ConstraintAttribute]string, len(raw))}
	for k, v := range raw {
		attr := ConstraintAttribute(k)
		if !slices.Contains(knownAttributes, attr) {
			continue
		}
		if attr == AttrConstraintValue {
			item.value = v
			continue
		}
		item.attributes[attr] = v
	}

	return item
}

// Attributes returns a copy of the rule attributes, without the value.
func (c *ConstraintItem) Attributes() map[ConstraintAttribute]string {
	return maps.Clone(c.attributes)
}

// Attribute returns one rule attribute.
func (c *ConstraintItem) Attribute(attr ConstraintAttribute) (string, bool) {
	v, ok := c.attributes[attr]
	return v, ok
}

// Value returns the constraint value: a number, "R" or "N".
func (c *ConstraintItem) Value() string {
	return c.value
}

// Match reports whether every rule attribute is present in query with an equal value.
func (c *ConstraintItem) Match(query map[ConstraintAttribute]string) bool {
	for attr, want := range c.attributes {
		got, ok := query[attr]
		if !ok || got != want {
			return false
		}
	}

	return true
}

func (c *ConstraintItem) rawMap() map[string]string {
	out := make(map[string]string, len(c.attributes)+1)
	for attr, v := range c.attributes {
		out[string(attr)] = v
	}
	out[string(AttrConstraintValue)] = c.value

	return out
}

// ClusterConstraints holds every constraint item of one type.
//
// The record id is the constraint type and every item is one map field
// keyed by its ConstraintID.
type ClusterConstraints struct {
	typ   ConstraintType
	items map[ConstraintID]*ConstraintItem
}

var _ Property = (*ClusterConstraints)(nil)

// NewClusterConstraints creates an empty constraint set.
func NewClusterConstraints(typ ConstraintType) *ClusterConstraints {
	return &ClusterConstraints{
		typ:   typ,
		items: make(map[ConstraintID]*ConstraintItem),
	}
}

// ClusterConstraintsFromRecord decodes a constraint set.
func ClusterConstraintsFromRecord(rec *types.Record) (*ClusterConstraints, error) {
	if err := requireRecord("constraints", rec); err != nil {
		return nil, err
	}
	typ := ConstraintType(rec.ID)
	if typ != StateConstraint && typ != MessageConstraint {
		return nil, fmt.Errorf("%w: unknown constraint type %q", types.ErrInvalidRecord, rec.ID)
	}

	c := NewClusterConstraints(typ)
	for id, raw := range rec.MapFields {
		c.items[ConstraintID(id)] = NewConstraintItem(raw)
	}

	return c, nil
}

// Type returns the constraint type.
func (c *ClusterConstraints) Type() ConstraintType {
	return c.typ
}

// AddConstraintItem adds or replaces the item with the given id.
func (c *ClusterConstraints) AddConstraintItem(id ConstraintID, item *ConstraintItem) {
	c.items[id] = item
}

// RemoveConstraintItem removes the item with the given id, if present.
func (c *ClusterConstraints) RemoveConstraintItem(id ConstraintID) {
	delete(c.items, id)
}

// ConstraintItem returns the item with the given id, or nil.
func (c *ClusterConstraints) ConstraintItem(id ConstraintID) *ConstraintItem {
	return c.items[id]
}

// Items returns a copy of the id to item map.
func (c *ClusterConstraints) Items() map[ConstraintID]*ConstraintItem {
	return maps.Clone(c.items)
}

// Match returns every item matching query, ordered by constraint id.
func (c *ClusterConstraints) Match(query map[ConstraintAttribute]string) []*ConstraintItem {
	ids := slices.Sorted(maps.Keys(c.items))

	var out []*ConstraintItem
	for _, id := range ids {
		if item := c.items[id]; item.Match(query) {
			out = append(out, item)
		}
	}

	return out
}

// Record encodes the constraint set.
func (c *ClusterConstraints) Record() *types.Record {
	rec := types.NewRecord(string(c.typ))
	for id, item := range c.items {
		rec.SetMapField(string(id), item.rawMap())
	}

	return rec
}
