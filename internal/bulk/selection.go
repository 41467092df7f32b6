package bulk

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/tgfetch/tgfetch"
)

// resolvePoolLimit bounds how many items a popularity selection will
// resolve individually before sorting.
const resolvePoolLimit = 30

type SelectionKind int

const (
	// SelectAll keeps the enumeration order, optionally truncated to N.
	SelectAll SelectionKind = iota
	// SelectRecent takes the N most recently published items.
	SelectRecent
	// SelectTop takes the N most viewed items.
	SelectTop
)

// Selection picks which enumerated items a run fetches. Ties always
// preserve the original enumeration order.
type Selection struct {
	Kind SelectionKind
	// N is the item limit; zero means "all" (only valid with SelectAll).
	N int
}

// Apply reorders and truncates items according to the selection. The
// resolver is only consulted for SelectTop, and only for a bounded pool of
// items missing a view count; resolve failures degrade to "no popularity
// known" rather than failing the run.
func (s Selection) Apply(ctx context.Context, items []tgfetch.SourceItem, resolver Resolver) []tgfetch.SourceItem {
	switch s.Kind {
	case SelectRecent:
		items = sortByRecency(items)
	case SelectTop:
		items = sortByPopularity(ctx, items, resolver)
	}
	if s.N > 0 && len(items) > s.N {
		items = items[:s.N]
	}
	return items
}

// sortByRecency sorts items with a known publish time newest-first, then
// pads with the remaining items in their original order.
func sortByRecency(items []tgfetch.SourceItem) []tgfetch.SourceItem {
	dated := make([]tgfetch.SourceItem, 0, len(items))
	undated := make([]tgfetch.SourceItem, 0)
	for _, item := range items {
		if item.PublishedAt.IsSome() {
			dated = append(dated, item)
		} else {
			undated = append(undated, item)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].PublishedAt.Unwrap().After(dated[j].PublishedAt.Unwrap())
	})
	return append(dated, undated...)
}

func sortByPopularity(ctx context.Context, items []tgfetch.SourceItem, resolver Resolver) []tgfetch.SourceItem {
	log := zap.S().Named("selection")
	out := make([]tgfetch.SourceItem, len(items))
	copy(out, items)

	resolved := 0
	for i := range out {
		if out[i].Views.IsSome() || resolver == nil || resolved >= resolvePoolLimit {
			continue
		}
		resolved++
		item, err := resolver.Resolve(ctx, out[i].URL)
		if err != nil {
			log.Debugw("failed to resolve popularity", "url", out[i].URL, "err", err)
			continue
		}
		out[i] = item
	}

	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := out[i].Views, out[j].Views
		if vi.IsSome() != vj.IsSome() {
			return vi.IsSome()
		}
		if vi.IsNone() {
			return false
		}
		return vi.Unwrap() > vj.Unwrap()
	})
	return out
}
