package domain

// EffectID identifies one effect instance. Ids are assigned by the host
// middleware and are unique for the lifetime of the process.
type EffectID int64

// NoParent is the parent id of root effects.
const NoParent EffectID = 0

// Kind is the closed classification of an observed effect.
type Kind string

const (
	KindCall     Kind = "CALL"
	KindPut      Kind = "PUT"
	KindFork     Kind = "FORK"
	KindRace     Kind = "RACE"
	KindAll      Kind = "ALL"
	KindTake     Kind = "TAKE"
	KindSelect   Kind = "SELECT"
	KindJoin     Kind = "JOIN"
	KindCancel   Kind = "CANCEL"
	KindCPS      Kind = "CPS"
	KindIterator Kind = "ITERATOR"
	KindPromise  Kind = "PROMISE"
	KindParallel Kind = "PARALLEL"
	KindRoot     Kind = "ROOT"
	KindUnknown  Kind = "UNKNOWN"
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	return string(k)
}

// Shape tells what the middleware yielded when it was not a plain effect.
type Shape string

const (
	ShapeEffect   Shape = ""         // A plain effect descriptor (Type is set)
	ShapeIterator Shape = "iterator" // A nested generator/iterator
	ShapePromise  Shape = "promise"  // A bare promise-like value
	ShapeArray    Shape = "array"    // A parallel array of effects
)

// Effect is the descriptor of one unit of work as submitted by the middleware.
// Only the fields relevant to the effect type are expected to be set.
type Effect struct {
	// Type is the raw effect label (e.g. "CALL", "PUT", "FORK").
	Type  string `json:"type,omitempty" mapstructure:"type"`
	Shape Shape  `json:"shape,omitempty" mapstructure:"shape"`

	// Fn is the function name for CALL, FORK, SPAWN, CPS and APPLY effects.
	Fn   string `json:"fn,omitempty" mapstructure:"fn"`
	Args []any  `json:"args,omitempty" mapstructure:"args"`

	// Action is the dispatched action of a PUT effect.
	Action  any    `json:"action,omitempty" mapstructure:"action"`
	Channel string `json:"channel,omitempty" mapstructure:"channel"`

	// Pattern is the TAKE pattern (string, list of strings, or anything printable).
	Pattern any `json:"pattern,omitempty" mapstructure:"pattern"`

	// Selector is the selector function name of a SELECT effect.
	Selector string `json:"selector,omitempty" mapstructure:"selector"`

	// Name is the iterator name, or the task name for JOIN/CANCEL.
	Name string `json:"name,omitempty" mapstructure:"name"`

	// Payload is the generic payload, shipped as "extra" for effects
	// without a dedicated extraction rule.
	Payload any `json:"payload,omitempty" mapstructure:"payload"`
}

// RootMeta describes a root saga started by the middleware.
type RootMeta struct {
	Name string `json:"name" mapstructure:"name"`
	Args []any  `json:"args,omitempty" mapstructure:"args"`
}
