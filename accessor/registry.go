package accessor

import (
	"fmt"
	"maps"

	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/types"
)

// Decoder rebuilds a typed property from a record.
type Decoder func(rec *types.Record) (model.Property, error)

// Registry maps property types to their decoders.
type Registry struct {
	decoders map[PropertyType]Decoder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[PropertyType]Decoder)}
}

// DefaultRegistry returns a registry with a decoder for every property type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(IdealStates, lift(model.IdealStateFromRecord))
	r.Register(StateModelDefs, lift(model.StateModelDefinitionFromRecord))
	r.Register(Constraints, lift(model.ClusterConstraintsFromRecord))
	r.Register(ClusterConfigs, lift(model.ClusterConfigFromRecord))
	r.Register(InstanceConfigs, lift(model.InstanceConfigFromRecord))
	r.Register(LiveInstances, lift(model.LiveInstanceFromRecord))
	r.Register(CurrentStates, lift(model.CurrentStateFromRecord))
	r.Register(Messages, lift(model.MessageFromRecord))
	r.Register(ExternalViews, lift(model.ExternalViewFromRecord))
	r.Register(ResourceAssignments, lift(model.ResourceAssignmentFromRecord))
	r.Register(Pause, lift(model.PauseSignalFromRecord))

	return r
}

// lift adapts a typed constructor to a Decoder.
func lift[T model.Property](decode func(*types.Record) (T, error)) Decoder {
	return func(rec *types.Record) (model.Property, error) {
		p, err := decode(rec)
		if err != nil {
			return nil, err
		}

		return p, nil
	}
}

// Register sets the decoder of a property type.
func (r *Registry) Register(t PropertyType, d Decoder) {
	r.decoders[t] = d
}

// Decode rebuilds a property of type t from rec.
//
// Returns:
//   - model.Property: Decoded property
//   - error: ErrUnknownPropertyType when no decoder is registered, or the decoder error
func (r *Registry) Decode(t PropertyType, rec *types.Record) (model.Property, error) {
	d, ok := r.decoders[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownPropertyType, t)
	}

	return d(rec)
}

// Clone returns a registry with the same decoders.
func (r *Registry) Clone() *Registry {
	return &Registry{decoders: maps.Clone(r.decoders)}
}
