package types

import "context"

const (
	StateTypeString = "string"
	StateTypeNumber = "number"
)

// StateObject describes a data point in the state tree.
type StateObject struct {
	Name  string `json:"name" yaml:"name"`
	Type  string `json:"type" yaml:"type"`
	Role  string `json:"role" yaml:"role"`
	Unit  string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Desc  string `json:"desc,omitempty" yaml:"desc,omitempty"`
	Read  bool   `json:"read" yaml:"read"`
	Write bool   `json:"write" yaml:"write"`
}

// StateStore is the host's state tree. Ids are dotted paths like "prices.0.start".
// Implementations must be safe for concurrent use.
type StateStore interface {
	// SetObjectNotExists declares the data point if it is not declared yet, otherwise it's a no-op.
	SetObjectNotExists(ctx context.Context, id string, obj StateObject) error
	// SetState overwrites the value. ack is true when the value comes from the adapter itself.
	SetState(ctx context.Context, id string, val any, ack bool) error
}

// StateTrimmer is implemented by stores that can drop stale indexed entries,
// i.e. every "<channel>.<n>.*" with n >= keep.
type StateTrimmer interface {
	Trim(ctx context.Context, channel string, keep int) error
}
