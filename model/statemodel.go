package model

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/arloliu/helmsman/types"
)

// State model record fields.
const (
	FieldInitialState           = "INITIAL_STATE"
	FieldStatePriorityList      = "STATE_PRIORITY_LIST"
	FieldTransitionPriorityList = "STATE_TRANSITION_PRIORITYLIST"
	stateMetaSuffix             = ".meta"
	stateNextSuffix             = ".next"
	stateMetaCount              = "count"
)

// Special replica bounds.
const (
	// UpperBoundReplicas bounds a state by the replica count of the resource.
	UpperBoundReplicas = "R"

	// UpperBoundParticipants bounds a state by the number of participants in the cluster.
	UpperBoundParticipants = "N"

	// UpperBoundNone marks a state without a bound.
	UpperBoundNone = "-1"
)

// StateModelDefinition describes the states a replica can be in, their
// priority, their per-partition replica bounds and the allowed transitions.
//
// A definition is immutable once built or decoded.
type StateModelDefinition struct {
	record      *types.Record
	id          types.StateModelDefID
	initial     types.State
	states      []types.State
	transitions []types.Transition
	counts      map[types.State]string
	next        map[types.State]map[types.State]types.State
}

var _ Property = (*StateModelDefinition)(nil)

// StateModelDefinitionFromRecord decodes a state model definition.
//
// A record without next-hop map fields gets its next hops derived from the
// transition priority list.
//
// Parameters:
//   - rec: Record whose id is the state model name
//
// Returns:
//   - *StateModelDefinition: Decoded definition
//   - error: ErrInvalidStateModel when the priority list is empty or does not
//     contain the initial state, ErrInvalidTransition for malformed transitions
func StateModelDefinitionFromRecord(rec *types.Record) (*StateModelDefinition, error) {
	if err := requireRecord("state model", rec); err != nil {
		return nil, err
	}

	def := &StateModelDefinition{
		record:  rec,
		id:      types.StateModelDefID(rec.ID),
		initial: types.State(rec.SimpleFields[FieldInitialState]),
		counts:  make(map[types.State]string),
		next:    make(map[types.State]map[types.State]types.State),
	}

	for _, s := range rec.ListFields[FieldStatePriorityList] {
		def.states = append(def.states, types.State(s))
	}
	if len(def.states) == 0 {
		return nil, fmt.Errorf("%w: %s has no states", types.ErrInvalidStateModel, rec.ID)
	}
	if def.initial == "" || !slices.Contains(def.states, def.initial) {
		return nil, fmt.Errorf("%w: %s initial state %q is not a declared state",
			types.ErrInvalidStateModel, rec.ID, def.initial)
	}

	for _, raw := range rec.ListFields[FieldTransitionPriorityList] {
		t, err := types.ParseTransition(raw)
		if err != nil {
			return nil, fmt.Errorf("state model %s: %w", rec.ID, err)
		}
		def.transitions = append(def.transitions, t)
	}

	hasNext := false
	for _, s := range def.states {
		if meta, ok := rec.MapFields[string(s)+stateMetaSuffix]; ok {
			if count, ok := meta[stateMetaCount]; ok {
				def.counts[s] = count
			}
		}
		if hops, ok := rec.MapFields[string(s)+stateNextSuffix]; ok {
			hasNext = true
			m := make(map[types.State]types.State, len(hops))
			for to, hop := range hops {
				m[types.State(to)] = types.State(hop)
			}
			def.next[s] = m
		}
	}
	if !hasNext {
		def.next = nextHops(def.states, def.transitions)
	}

	return def, nil
}

// Record returns the underlying record.
func (d *StateModelDefinition) Record() *types.Record {
	return d.record
}

// ID returns the state model name.
func (d *StateModelDefinition) ID() types.StateModelDefID {
	return d.id
}

// InitialState returns the state new replicas start in.
func (d *StateModelDefinition) InitialState() types.State {
	return d.initial
}

// StatesPriorityList returns the states ordered from highest to lowest priority.
func (d *StateModelDefinition) StatesPriorityList() []types.State {
	return slices.Clone(d.states)
}

// StateTransitionPriorityList returns the transitions ordered from highest to lowest priority.
func (d *StateModelDefinition) StateTransitionPriorityList() []types.Transition {
	return slices.Clone(d.transitions)
}

// NumParticipantsPerState returns the replica bound of a state.
//
// Returns:
//   - string: A number, "R", "N", or "-1" when the state is unbounded or unknown
func (d *StateModelDefinition) NumParticipantsPerState(state types.State) string {
	if count, ok := d.counts[state]; ok {
		return count
	}

	return UpperBoundNone
}

// NextStateForTransition returns the first hop on the way from one state to another.
//
// Returns:
//   - types.State: Next state to move to
//   - bool: false when to cannot be reached from from
func (d *StateModelDefinition) NextStateForTransition(from, to types.State) (types.State, bool) {
	hop, ok := d.next[from][to]
	return hop, ok
}

// IsAllowedTransition reports whether from-to is a declared transition.
func (d *StateModelDefinition) IsAllowedTransition(from, to types.State) bool {
	return slices.Contains(d.transitions, types.Transition{From: from, To: to})
}

// nextHops computes, for every ordered pair of states, the first hop of a
// shortest path through the transition graph. Ties are broken by transition
// priority.
func nextHops(states []types.State, transitions []types.Transition) map[types.State]map[types.State]types.State {
	adj := make(map[types.State][]types.State)
	for _, t := range transitions {
		adj[t.From] = append(adj[t.From], t.To)
	}

	out := make(map[types.State]map[types.State]types.State, len(states))
	for _, src := range states {
		hops := make(map[types.State]types.State)
		type step struct{ state, first types.State }
		queue := make([]step, 0, len(adj[src]))
		for _, to := range adj[src] {
			if _, seen := hops[to]; seen || to == src {
				continue
			}
			hops[to] = to
			queue = append(queue, step{state: to, first: to})
		}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, to := range adj[cur.state] {
				if _, seen := hops[to]; seen || to == src {
					continue
				}
				hops[to] = cur.first
				queue = append(queue, step{state: to, first: cur.first})
			}
		}
		if len(hops) > 0 {
			out[src] = hops
		}
	}

	return out
}

// StateModelDefinitionBuilder assembles a StateModelDefinition.
//
// Example:
//
//	def, err := model.NewStateModelDefinitionBuilder("MasterSlave").
//	    AddState("MASTER", 1).
//	    AddState("SLAVE", 2).
//	    AddState("OFFLINE", 3).
//	    InitialState("OFFLINE").
//	    UpperBound("MASTER", 1).
//	    DynamicUpperBound("SLAVE", model.UpperBoundReplicas).
//	    AddTransition("OFFLINE", "SLAVE", 1).
//	    AddTransition("SLAVE", "MASTER", 2).
//	    Build()
type StateModelDefinitionBuilder struct {
	id          types.StateModelDefID
	initial     types.State
	states      []prioritized[types.State]
	transitions []prioritized[types.Transition]
	bounds      map[types.State]string
	errs        []error
}

type prioritized[T any] struct {
	value    T
	priority int
	order    int
}

// NewStateModelDefinitionBuilder starts a definition with the given name.
func NewStateModelDefinitionBuilder(id types.StateModelDefID) *StateModelDefinitionBuilder {
	return &StateModelDefinitionBuilder{
		id:     id,
		bounds: make(map[types.State]string),
	}
}

// AddState declares a state. Lower priority values rank higher; states with
// equal priority keep their insertion order.
func (b *StateModelDefinitionBuilder) AddState(state types.State, priority int) *StateModelDefinitionBuilder {
	b.states = append(b.states, prioritized[types.State]{value: state, priority: priority, order: len(b.states)})
	return b
}

// InitialState sets the state new replicas start in.
func (b *StateModelDefinitionBuilder) InitialState(state types.State) *StateModelDefinitionBuilder {
	b.initial = state
	return b
}

// UpperBound limits the number of replicas of a partition in state.
func (b *StateModelDefinitionBuilder) UpperBound(state types.State, upperBound int) *StateModelDefinitionBuilder {
	b.bounds[state] = fmt.Sprint(upperBound)
	return b
}

// DynamicUpperBound bounds state by the replica count ("R") or the
// participant count ("N"). Other values make Build fail.
func (b *StateModelDefinitionBuilder) DynamicUpperBound(state types.State, bound string) *StateModelDefinitionBuilder {
	if bound != UpperBoundReplicas && bound != UpperBoundParticipants {
		b.errs = append(b.errs, fmt.Errorf("%w: dynamic bound %q for state %s",
			types.ErrInvalidStateModel, bound, state))
		return b
	}
	b.bounds[state] = bound

	return b
}

// AddTransition declares an allowed transition. Lower priority values rank higher.
func (b *StateModelDefinitionBuilder) AddTransition(from, to types.State, priority int) *StateModelDefinitionBuilder {
	b.transitions = append(b.transitions, prioritized[types.Transition]{
		value:    types.Transition{From: from, To: to},
		priority: priority,
		order:    len(b.transitions),
	})

	return b
}

// Build validates the builder and returns the definition.
//
// Returns:
//   - *StateModelDefinition: The definition with next hops computed
//   - error: ErrInvalidStateModel when no state was added, the initial state is
//     not a declared state, a transition references an unknown state, or a
//     dynamic bound was invalid
func (b *StateModelDefinitionBuilder) Build() (*StateModelDefinition, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}

	states := sortPrioritized(b.states)
	transitions := sortPrioritized(b.transitions)
	for _, t := range transitions {
		if !slices.Contains(states, t.From) || !slices.Contains(states, t.To) {
			return nil, fmt.Errorf("%w: transition %s references an undeclared state",
				types.ErrInvalidStateModel, t)
		}
	}

	rec := types.NewRecord(string(b.id))
	rec.SetSimpleField(FieldInitialState, string(b.initial))

	stateNames := make([]string, len(states))
	for i, s := range states {
		stateNames[i] = string(s)
		bound, ok := b.bounds[s]
		if !ok {
			bound = UpperBoundNone
		}
		rec.SetMapField(string(s)+stateMetaSuffix, map[string]string{stateMetaCount: bound})
	}
	rec.SetListField(FieldStatePriorityList, stateNames)

	transitionNames := make([]string, len(transitions))
	for i, t := range transitions {
		transitionNames[i] = t.String()
	}
	rec.SetListField(FieldTransitionPriorityList, transitionNames)

	for from, hops := range nextHops(states, transitions) {
		raw := make(map[string]string, len(hops))
		for to, hop := range hops {
			raw[string(to)] = string(hop)
		}
		rec.SetMapField(string(from)+stateNextSuffix, raw)
	}

	return StateModelDefinitionFromRecord(rec)
}

func sortPrioritized[T any](items []prioritized[T]) []T {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b prioritized[T]) int {
		return cmp.Or(cmp.Compare(a.priority, b.priority), cmp.Compare(a.order, b.order))
	})

	out := make([]T, len(sorted))
	for i, item := range sorted {
		out[i] = item.value
	}

	return out
}
