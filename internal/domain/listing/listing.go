// Package listing models the outcome of a list read. An empty list is not an
// error, but callers must be able to tell it apart from a populated one
// without inspecting a boolean.
package listing

// Kind classifies a list outcome.
type Kind int

const (
	// Found means at least one item was returned.
	Found Kind = iota
	// Empty means the query matched nothing.
	Empty
	// Exhausted means the requested page starts past the last record.
	Exhausted
)

func (k Kind) String() string {
	switch k {
	case Found:
		return "found"
	case Empty:
		return "empty"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Result carries items together with how the list ended.
type Result[T any] struct {
	Kind  Kind
	Items []T
}

// Of wraps items, reporting Empty when there are none.
func Of[T any](items []T) Result[T] {
	if len(items) == 0 {
		return Result[T]{Kind: Empty}
	}
	return Result[T]{Kind: Found, Items: items}
}

// NoMore builds an Exhausted result.
func NoMore[T any]() Result[T] {
	return Result[T]{Kind: Exhausted}
}

func (r Result[T]) IsFound() bool {
	return r.Kind == Found
}
