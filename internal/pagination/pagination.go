// Package pagination derives page counts, item ranges, navigation state and
// page-number windows. Every function is pure; callers own the state.
package pagination

import (
	"fmt"

	"github.com/peternagy/chromapal/internal/types"
)

// DefaultWindowSize is the number of contiguous page links shown around the current page.
const DefaultWindowSize = 5

// TotalPages returns ceil(total/perPage), never less than 1.
func TotalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

// Offset returns the zero-based offset of a 1-based page.
func Offset(page, perPage int) int {
	if page <= 1 || perPage <= 0 {
		return 0
	}
	return (page - 1) * perPage
}

// Reset returns the state for page 1 of a freshly selected collection.
// total is nil when the count is unknown.
func Reset(perPage int, total *int) types.PaginationState {
	st := types.PaginationState{
		CurrentPage:  1,
		ItemsPerPage: perPage,
		TotalItems:   copyInt(total),
		TotalPages:   1,
	}
	if total != nil {
		st.TotalPages = TotalPages(*total, perPage)
	}
	return st
}

// Recompute applies a successful fetch of fetched items for st.CurrentPage.
//
// With a known total the page count is exact and the current page is clamped.
// With an unknown total a short page marks the end of the collection and makes
// the total known; a full page means at least one more page exists.
func Recompute(st types.PaginationState, fetched int) types.PaginationState {
	out := st
	out.TotalItems = copyInt(st.TotalItems)
	out.LastPageItemCount = fetched
	if out.CurrentPage < 1 {
		out.CurrentPage = 1
	}

	if out.TotalItems != nil {
		out.TotalPages = TotalPages(*out.TotalItems, out.ItemsPerPage)
		if out.CurrentPage > out.TotalPages {
			out.CurrentPage = out.TotalPages
		}
		return out
	}

	if fetched < out.ItemsPerPage {
		total := Offset(out.CurrentPage, out.ItemsPerPage) + fetched
		out.TotalItems = &total
		// An empty page past the end still counts as a page.
		out.TotalPages = max(out.CurrentPage, TotalPages(total, out.ItemsPerPage))
		return out
	}

	out.TotalPages = out.CurrentPage + 1
	return out
}

// CanGoTo reports whether navigating to page n would change anything.
// Pages beyond an estimated total are allowed; the next fetch settles them.
func CanGoTo(st types.PaginationState, n int) bool {
	if n == st.CurrentPage || n < 1 {
		return false
	}
	if st.TotalKnown() && n > st.TotalPages {
		return false
	}
	return true
}

// GoTo returns the pending state for page n. It is committed only after the
// page is fetched and passed through Recompute.
func GoTo(st types.PaginationState, n int) types.PaginationState {
	out := st
	out.TotalItems = copyInt(st.TotalItems)
	out.CurrentPage = n
	return out
}

// WithPageSize returns the pending state for a new page size: page 1, same total.
func WithPageSize(st types.PaginationState, perPage int) types.PaginationState {
	return Reset(perPage, st.TotalItems)
}

// FilterState is the pagination state while an in-page search is active.
// It counts only the matching rows of the loaded page.
func FilterState(st types.PaginationState, matched int) types.PaginationState {
	total := matched
	return types.PaginationState{
		CurrentPage:       1,
		ItemsPerPage:      st.ItemsPerPage,
		TotalItems:        &total,
		TotalPages:        TotalPages(matched, st.ItemsPerPage),
		LastPageItemCount: matched,
	}
}

// Info describes the displayed range for a server-driven page of shown rows.
func Info(st types.PaginationState, shown int) types.ItemsInfo {
	info := types.ItemsInfo{Total: copyInt(st.TotalItems)}
	if shown <= 0 {
		info.Text = "No items"
		return info
	}
	info.Start = Offset(st.CurrentPage, st.ItemsPerPage) + 1
	info.End = info.Start + shown - 1
	if st.TotalItems != nil {
		info.Text = fmt.Sprintf("Showing %d-%d of %d items", info.Start, info.End, *st.TotalItems)
	} else {
		info.Text = fmt.Sprintf("Showing %d-%d items", info.Start, info.End)
	}
	return info
}

// FilteredInfo describes the displayed range while an in-page search is active.
func FilteredInfo(matched, loaded int, term string) types.ItemsInfo {
	total := matched
	info := types.ItemsInfo{Total: &total}
	if matched > 0 {
		info.Start = 1
		info.End = matched
	}
	info.Text = fmt.Sprintf("Showing %d of %d items on this page matching %q", matched, loaded, term)
	return info
}

// Buttons reports navigation-button availability. Last needs a known total.
func Buttons(st types.PaginationState) types.NavButtons {
	return types.NavButtons{
		First: st.CurrentPage > 1,
		Prev:  st.CurrentPage > 1,
		Next:  st.CurrentPage < st.TotalPages,
		Last:  st.TotalKnown() && st.CurrentPage < st.TotalPages,
	}
}

// Window returns the page links around the current page. size is forced odd;
// page 1 and the last page are always present, and an ellipsis separates
// either of them from the window whenever the window does not reach it.
func Window(st types.PaginationState, size int) []types.PageLink {
	total := st.TotalPages
	if total < 1 {
		total = 1
	}
	cur := min(max(st.CurrentPage, 1), total)
	if size < 1 {
		size = DefaultWindowSize
	}
	if size%2 == 0 {
		size++
	}

	half := size / 2
	start, end := cur-half, cur+half
	if start < 1 {
		end += 1 - start
		start = 1
	}
	if end > total {
		start -= end - total
		end = total
	}
	if start < 1 {
		start = 1
	}

	links := make([]types.PageLink, 0, size+4)
	if start > 1 {
		links = append(links, types.PageLink{Page: 1}, types.PageLink{Ellipsis: true})
	}
	for p := start; p <= end; p++ {
		links = append(links, types.PageLink{Page: p, Current: p == cur})
	}
	if end < total {
		links = append(links, types.PageLink{Ellipsis: true}, types.PageLink{Page: total})
	}
	return links
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
