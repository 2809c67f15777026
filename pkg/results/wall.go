package results

import (
	"encoding/json"
	"iter"

	"github.com/Sternrassler/vk-client/pkg/params"
)

// WallGet merges wall.get pages, optionally with the profiles and groups
// the server attaches when extended=1.
type WallGet struct {
	result   *Result
	extended bool
}

// NewWallGet creates an aggregator for a wall.get call made with args.
func NewWallGet(args params.Args) *WallGet {
	w := &WallGet{
		result: &Result{
			Count: 0,
			Items: []json.RawMessage{},
		},
	}

	if args.Bool("extended") {
		w.extended = true
		w.result.Extended = &Extended{
			Profiles: []Object{},
			Groups:   []Object{},
		}
	}

	return w
}

// Method implements Aggregator.
func (w *WallGet) Method() Method { return MethodWallGet }

// Extended reports whether profiles and groups are being merged.
func (w *WallGet) Extended() bool { return w.extended }

// BatchSizes implements Aggregator.
func (w *WallGet) BatchSizes() iter.Seq[int] { return ConstantBatchSizes(DefaultBatchSize) }

// IsNewItems implements Aggregator.
func (w *WallGet) IsNewItems(page Page) bool { return len(page.Items) > 0 }

// Update implements Aggregator. Count is replaced, not summed: every page reports the listing total.
func (w *WallGet) Update(page Page) {
	w.result.Count = page.Count
	w.result.Items = append(w.result.Items, page.Items...)

	if w.extended {
		w.result.Profiles = MergeIndexed(w.result.Profiles, page.Profiles, objectID)
		w.result.Groups = MergeIndexed(w.result.Groups, page.Groups, objectID)
	}
}

// Result implements Aggregator.
func (w *WallGet) Result() *Result { return w.result }
