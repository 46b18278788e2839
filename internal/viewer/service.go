// Package viewer owns the collection view: the selected collection, the loaded
// page, its pagination state and the in-page search over it.
package viewer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/peternagy/chromapal/internal/chroma"
	"github.com/peternagy/chromapal/internal/core"
	"github.com/peternagy/chromapal/internal/debug"
	"github.com/peternagy/chromapal/internal/document"
	"github.com/peternagy/chromapal/internal/pagination"
	"github.com/peternagy/chromapal/internal/schema"
	"github.com/peternagy/chromapal/internal/types"
)

// EventState is emitted with a *types.ViewModel after every transition.
const EventState = "viewer:state"

// Settings configures the viewer.
type Settings struct {
	PageSize   int
	PageSizes  []int
	WindowSize int
}

// DefaultSettings returns the built-in viewer settings.
func DefaultSettings() Settings {
	return Settings{
		PageSize:   50,
		PageSizes:  []int{10, 25, 50, 100},
		WindowSize: pagination.DefaultWindowSize,
	}
}

// session is the committed view. State and Rows change only after a
// successful fetch; Filtered is derived from Rows and never replaces them.
type session struct {
	collection *types.CollectionRef
	state      types.PaginationState
	rows       []types.DisplayRow
	searchTerm string
	filtered   []types.DisplayRow
	loading    bool
	err        string
	attempts   []types.NegotiationAttempt
}

// Service drives the collection view.
type Service struct {
	state    *core.AppState
	tracker  *core.FetchTracker
	settings Settings

	mu       sync.Mutex
	pageSize int
	session  session
}

// NewService creates a new viewer service.
func NewService(state *core.AppState, settings Settings) *Service {
	d := DefaultSettings()
	if settings.PageSize <= 0 {
		settings.PageSize = d.PageSize
	}
	if len(settings.PageSizes) == 0 {
		settings.PageSizes = d.PageSizes
	}
	if settings.WindowSize <= 0 {
		settings.WindowSize = d.WindowSize
	}
	return &Service{
		state:    state,
		tracker:  core.NewFetchTracker(),
		settings: settings,
		pageSize: settings.PageSize,
		session: session{
			state: pagination.Reset(settings.PageSize, nil),
		},
	}
}

// PageSizes returns the page sizes offered to the user.
func (s *Service) PageSizes() []int {
	return append([]int(nil), s.settings.PageSizes...)
}

// =============================================================================
// Transitions
// =============================================================================

// SelectCollection opens a collection at page 1. The count is resolved before
// the first page is fetched. If the fetch fails the collection stays selected
// with an error so Refresh can retry.
func (s *Service) SelectCollection(collectionID string) (*types.ViewModel, error) {
	client, err := s.state.GetClient()
	if err != nil {
		return nil, err
	}
	col, err := s.state.FindCollection(collectionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	perPage := s.pageSize
	s.mu.Unlock()

	ctx, tag := s.tracker.Begin(context.Background(), col.ID, 1, perPage)
	defer s.tracker.Finish(tag)
	s.markLoading(tag, &col)

	count := s.resolveCount(ctx, client, col.ID)
	pending := pagination.Reset(perPage, count)
	s.recordCount(tag, pending)

	rows, attempts, fetchErr := s.fetchRows(ctx, client, col.ID, pending)

	s.mu.Lock()
	if !s.tracker.IsCurrent(tag) {
		s.mu.Unlock()
		return s.staleResult(tag)
	}
	if fetchErr != nil {
		s.session = session{
			collection: &col,
			state:      pending,
			rows:       []types.DisplayRow{},
			err:        fetchErr.Error(),
			attempts:   attempts,
		}
	} else {
		s.session = session{
			collection: &col,
			state:      pagination.Recompute(pending, len(rows)),
			rows:       rows,
			attempts:   attempts,
		}
	}
	vm := s.viewModelLocked()
	s.mu.Unlock()

	s.logCommit("Selected collection", tag, vm, fetchErr)
	s.emit(vm)
	return vm, fetchErr
}

// GoToPage fetches page n. Requests for the current page, pages below 1 or
// pages beyond a known total are no-ops.
func (s *Service) GoToPage(n int) (*types.ViewModel, error) {
	s.mu.Lock()
	if s.session.collection == nil {
		s.mu.Unlock()
		return nil, &core.NoCollectionSelectedError{}
	}
	current := s.session.state
	if !pagination.CanGoTo(current, n) {
		vm := s.viewModelLocked()
		s.mu.Unlock()
		debug.LogPagination("Ignored page change", map[string]interface{}{
			"page":       n,
			"current":    current.CurrentPage,
			"totalPages": current.TotalPages,
		})
		return vm, nil
	}
	s.mu.Unlock()

	return s.load(pagination.GoTo(current, n), "Changed page")
}

// ChangePageSize switches to size items per page and returns to page 1.
func (s *Service) ChangePageSize(size int) (*types.ViewModel, error) {
	if size <= 0 {
		return nil, &core.ValidationError{Field: "pageSize", Message: "must be positive"}
	}

	s.mu.Lock()
	if s.session.collection == nil {
		s.pageSize = size
		s.session.state = pagination.Reset(size, nil)
		vm := s.viewModelLocked()
		s.mu.Unlock()
		return vm, nil
	}
	pending := pagination.WithPageSize(s.session.state, size)
	s.mu.Unlock()

	vm, err := s.load(pending, "Changed page size")
	if err == nil {
		s.mu.Lock()
		s.pageSize = size
		s.mu.Unlock()
	}
	return vm, err
}

// NextPage moves one page forward.
func (s *Service) NextPage() (*types.ViewModel, error) {
	return s.GoToPage(s.currentState().CurrentPage + 1)
}

// PrevPage moves one page back.
func (s *Service) PrevPage() (*types.ViewModel, error) {
	return s.GoToPage(s.currentState().CurrentPage - 1)
}

// FirstPage moves to page 1.
func (s *Service) FirstPage() (*types.ViewModel, error) {
	return s.GoToPage(1)
}

// LastPage moves to the last page. Without a known total it is a no-op.
func (s *Service) LastPage() (*types.ViewModel, error) {
	st := s.currentState()
	if !st.TotalKnown() {
		return s.GetViewModel(), nil
	}
	return s.GoToPage(st.TotalPages)
}

// Refresh re-resolves the count and re-fetches the current page. An active
// search is re-applied to the fresh rows.
func (s *Service) Refresh() (*types.ViewModel, error) {
	client, err := s.state.GetClient()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.session.collection == nil {
		s.mu.Unlock()
		return nil, &core.NoCollectionSelectedError{}
	}
	col := *s.session.collection
	pending := s.session.state
	s.mu.Unlock()

	ctx, tag := s.tracker.Begin(context.Background(), col.ID, pending.CurrentPage, pending.ItemsPerPage)
	defer s.tracker.Finish(tag)
	s.markLoading(tag, nil)

	pending.TotalItems = s.resolveCount(ctx, client, col.ID)
	if pending.TotalItems != nil {
		pending.CurrentPage = min(pending.CurrentPage, pagination.TotalPages(*pending.TotalItems, pending.ItemsPerPage))
	}
	rows, attempts, fetchErr := s.fetchRows(ctx, client, col.ID, pending)

	return s.commit(tag, pending, rows, attempts, fetchErr, "Refreshed page", true)
}

// ApplySearch narrows the displayed rows to those matching term. It never
// touches the network; an empty term clears the search.
func (s *Service) ApplySearch(term string) (*types.ViewModel, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.ClearSearch(), nil
	}

	s.mu.Lock()
	if s.session.collection == nil {
		s.mu.Unlock()
		return nil, &core.NoCollectionSelectedError{}
	}
	s.session.searchTerm = term
	s.session.filtered = document.Filter(s.session.rows, term)
	vm := s.viewModelLocked()
	s.mu.Unlock()

	debug.LogSearch("Applied in-page search", map[string]interface{}{
		"term":    term,
		"matched": len(vm.Rows),
	})
	s.emit(vm)
	return vm, nil
}

// ClearSearch restores the server-driven page exactly as it was loaded.
func (s *Service) ClearSearch() *types.ViewModel {
	s.mu.Lock()
	s.session.searchTerm = ""
	s.session.filtered = nil
	vm := s.viewModelLocked()
	s.mu.Unlock()

	debug.LogSearch("Cleared in-page search", nil)
	s.emit(vm)
	return vm
}

// Reset cancels any in-flight fetch and clears the selection.
func (s *Service) Reset() {
	s.tracker.CancelAll()

	s.mu.Lock()
	s.session = session{state: pagination.Reset(s.pageSize, nil)}
	vm := s.viewModelLocked()
	s.mu.Unlock()

	s.emit(vm)
}

// =============================================================================
// Queries
// =============================================================================

// GetViewModel returns the current view.
func (s *Service) GetViewModel() *types.ViewModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewModelLocked()
}

// CurrentRows returns the selected collection and the rows on screen.
func (s *Service) CurrentRows() (types.CollectionRef, []types.DisplayRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.collection == nil {
		return types.CollectionRef{}, nil, &core.NoCollectionSelectedError{}
	}
	return *s.session.collection, append([]types.DisplayRow(nil), s.displayedLocked()...), nil
}

// RawJSON renders the rows on screen as indented JSON.
func (s *Service) RawJSON() (string, error) {
	_, rows, err := s.CurrentRows()
	if err != nil {
		return "", err
	}
	return document.RawJSON(rows)
}

// =============================================================================
// Internals
// =============================================================================

// load fetches the page described by pending and commits it on success.
// A successful page change clears the search.
func (s *Service) load(pending types.PaginationState, action string) (*types.ViewModel, error) {
	client, err := s.state.GetClient()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.session.collection == nil {
		s.mu.Unlock()
		return nil, &core.NoCollectionSelectedError{}
	}
	colID := s.session.collection.ID
	s.mu.Unlock()

	ctx, tag := s.tracker.Begin(context.Background(), colID, pending.CurrentPage, pending.ItemsPerPage)
	defer s.tracker.Finish(tag)
	s.markLoading(tag, nil)

	rows, attempts, fetchErr := s.fetchRows(ctx, client, colID, pending)
	return s.commit(tag, pending, rows, attempts, fetchErr, action, false)
}

// commit applies a fetch result if tag is still current. On failure the
// committed state and rows are kept and only the error is recorded.
func (s *Service) commit(tag core.FetchTag, pending types.PaginationState, rows []types.DisplayRow,
	attempts []types.NegotiationAttempt, fetchErr error, action string, keepSearch bool) (*types.ViewModel, error) {

	s.mu.Lock()
	if !s.tracker.IsCurrent(tag) {
		s.mu.Unlock()
		return s.staleResult(tag)
	}
	s.session.loading = false
	s.session.attempts = attempts
	if fetchErr != nil {
		s.session.err = fetchErr.Error()
	} else {
		s.session.err = ""
		s.session.state = pagination.Recompute(pending, len(rows))
		s.session.rows = rows
		if keepSearch && s.session.searchTerm != "" {
			s.session.filtered = document.Filter(rows, s.session.searchTerm)
		} else {
			s.session.searchTerm = ""
			s.session.filtered = nil
		}
	}
	vm := s.viewModelLocked()
	s.mu.Unlock()

	s.logCommit(action, tag, vm, fetchErr)
	s.emit(vm)
	return vm, fetchErr
}

// fetchRows runs the negotiated fetch for pending and formats the result.
// Responses to bodies without limit and offset start at offset 0, so their
// rows are windowed to the requested page.
func (s *Service) fetchRows(ctx context.Context, client *chroma.Client, collectionID string, pending types.PaginationState) ([]types.DisplayRow, []types.NegotiationAttempt, error) {
	req := types.NewPageRequest(collectionID, pending.CurrentPage, pending.ItemsPerPage)
	res, err := client.FetchPage(ctx, req.CollectionID, req.Limit, req.Offset)
	if err != nil {
		return nil, nil, err
	}
	if !res.OK() {
		debug.LogNegotiation("Every request variant failed", map[string]interface{}{
			"collection": collectionID,
			"status":     res.Response.StatusCode,
			"attempts":   len(res.Attempts),
		})
		return nil, res.Attempts, res.Err()
	}

	raw, err := res.Decode()
	if err != nil {
		return nil, res.Attempts, err
	}
	rows := document.Format(raw)
	if !res.Paginated {
		rows = windowRows(rows, req.Offset, req.Limit)
	}
	debug.LogNegotiation("Fetched page", map[string]interface{}{
		"collection": collectionID,
		"variant":    res.Variant,
		"attempts":   len(res.Attempts),
		"rows":       len(rows),
	})
	return rows, res.Attempts, nil
}

func (s *Service) resolveCount(ctx context.Context, client *chroma.Client, collectionID string) *int {
	cctx, cancel := context.WithTimeout(ctx, core.DefaultQueryTimeout)
	defer cancel()
	count := client.ResolveCount(cctx, collectionID)
	if count == nil {
		debug.LogCount("Count unavailable, estimating pages", map[string]interface{}{"collection": collectionID})
	} else {
		debug.LogCount("Resolved count", map[string]interface{}{"collection": collectionID, "count": *count})
	}
	return count
}

func (s *Service) markLoading(tag core.FetchTag, col *types.CollectionRef) {
	s.mu.Lock()
	if !s.tracker.IsCurrent(tag) {
		s.mu.Unlock()
		return
	}
	if col != nil {
		c := *col
		s.session = session{
			collection: &c,
			state:      pagination.Reset(tag.PageSize, nil),
			rows:       []types.DisplayRow{},
		}
	}
	s.session.loading = true
	vm := s.viewModelLocked()
	s.mu.Unlock()
	s.emit(vm)
}

// recordCount stores a freshly resolved total while the first page is still
// loading, so a page change issued meanwhile keeps it.
func (s *Service) recordCount(tag core.FetchTag, pending types.PaginationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracker.IsCurrent(tag) {
		s.session.state = pending
	}
}

func (s *Service) staleResult(tag core.FetchTag) (*types.ViewModel, error) {
	debug.LogPagination("Discarded superseded fetch", map[string]interface{}{
		"requestId": tag.RequestID,
		"page":      tag.Page,
		"pageSize":  tag.PageSize,
	})
	return s.GetViewModel(), nil
}

func (s *Service) currentState() types.PaginationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.state
}

func (s *Service) displayedLocked() []types.DisplayRow {
	if s.session.searchTerm != "" {
		return s.session.filtered
	}
	return s.session.rows
}

func (s *Service) viewModelLocked() *types.ViewModel {
	ss := &s.session
	rows := ss.rows
	st := ss.state
	info := pagination.Info(st, len(rows))
	filtered := ss.searchTerm != ""
	if filtered {
		rows = ss.filtered
		st = pagination.FilterState(ss.state, len(rows))
		info = pagination.FilteredInfo(len(rows), len(ss.rows), ss.searchTerm)
	}

	vm := &types.ViewModel{
		Rows:       append([]types.DisplayRow(nil), rows...),
		State:      st,
		Window:     pagination.Window(st, s.settings.WindowSize),
		ItemsInfo:  info,
		Buttons:    pagination.Buttons(st),
		SearchTerm: ss.searchTerm,
		Filtered:   filtered,
		Columns:    schema.InferColumns(rows),
		Loading:    ss.loading,
		Error:      ss.err,
		Attempts:   append([]types.NegotiationAttempt(nil), ss.attempts...),
	}
	if vm.Rows == nil {
		vm.Rows = []types.DisplayRow{}
	}
	if ss.collection != nil {
		c := *ss.collection
		vm.Collection = &c
	}
	return vm
}

func (s *Service) logCommit(action string, tag core.FetchTag, vm *types.ViewModel, err error) {
	details := map[string]interface{}{
		"requestId":  tag.RequestID,
		"collection": tag.CollectionID,
		"page":       vm.State.CurrentPage,
		"pageSize":   vm.State.ItemsPerPage,
		"totalPages": vm.State.TotalPages,
		"rows":       len(vm.Rows),
	}
	if err != nil {
		details["error"] = err.Error()
		var fe *chroma.FetchError
		if errors.As(err, &fe) {
			details["status"] = fe.Status
		}
	}
	debug.LogPagination(action, details)
}

func (s *Service) emit(vm *types.ViewModel) {
	s.state.EmitEvent(EventState, vm)
}

// windowRows returns rows[offset:offset+limit], clamped.
func windowRows(rows []types.DisplayRow, offset, limit int) []types.DisplayRow {
	if offset >= len(rows) {
		return []types.DisplayRow{}
	}
	end := min(offset+limit, len(rows))
	return rows[offset:end]
}
