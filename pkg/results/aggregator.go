package results

import (
	"errors"
	"fmt"
	"iter"
	"sort"

	"github.com/Sternrassler/vk-client/pkg/params"
)

// DefaultBatchSize is the page size requested on every call (the VK maximum for list methods).
const DefaultBatchSize = 100

// ErrUnsupportedMethod is returned by New for methods without a merge policy.
var ErrUnsupportedMethod = errors.New("method has no result aggregator")

// Method identifies a VK API method, e.g. "wall.get".
type Method string

// Known paginated methods.
const (
	MethodWallGet Method = "wall.get"
)

// Aggregator accumulates the pages of one paginated call.
// Implementations are not safe for concurrent use; one aggregator serves one call.
type Aggregator interface {
	// Method returns the API method this aggregator merges.
	Method() Method

	// BatchSizes returns an infinite sequence of page sizes; pull one per request.
	BatchSizes() iter.Seq[int]

	// IsNewItems reports whether page carries any items. Callers stop paging on false.
	IsNewItems(page Page) bool

	// Update merges page into the running result.
	Update(page Page)

	// Result returns the merged result. It is authoritative after each Update.
	Result() *Result
}

type constructor func(args params.Args) Aggregator

var constructors = map[Method]constructor{
	MethodWallGet: func(args params.Args) Aggregator { return NewWallGet(args) },
}

// New returns the aggregator registered for method.
func New(method Method, args params.Args) (Aggregator, error) {
	ctor, ok := constructors[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	return ctor(args), nil
}

// Supported reports whether method has a registered aggregator.
func Supported(method Method) bool {
	_, ok := constructors[method]
	return ok
}

// Methods lists the methods with a registered aggregator, sorted.
func Methods() []Method {
	out := make([]Method, 0, len(constructors))
	for m := range constructors {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ConstantBatchSizes yields size on every pull, forever.
func ConstantBatchSizes(size int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for yield(size) {
		}
	}
}

// MergeIndexed combines prev and next into one slice holding each key once.
// Entries keep the position of their first occurrence and the value of their last,
// so an entry from next replaces a prev entry with the same key.
func MergeIndexed[T any, K comparable](prev, next []T, key func(T) K) []T {
	out := make([]T, 0, len(prev)+len(next))
	index := make(map[K]int, len(prev)+len(next))

	for _, seq := range [][]T{prev, next} {
		for _, v := range seq {
			k := key(v)
			if i, ok := index[k]; ok {
				out[i] = v
				continue
			}
			index[k] = len(out)
			out = append(out, v)
		}
	}

	return out
}

func objectID(o Object) int64 { return o.ID }
