package generate

// State is the lifecycle position of a Generator.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateGenerating
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateGenerating:
		return "generating"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}
