package listing

import (
	"fmt"
	"sync"
	"time"

	"github.com/TemirB/freight-portal/internal/domain"
)

// State is the lifecycle state of a view.
type State uint8

const (
	Uninitialized State = iota
	Ready
	Filtered
	Failed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Filtered:
		return "filtered"
	case Failed:
		return "error"
	default:
		return "uninitialized"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for _, c := range []State{Uninitialized, Ready, Filtered, Failed} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown list state %q", b)
}

// RequestState tracks the single in-flight request a view may have.
type RequestState uint8

const (
	Idle RequestState = iota
	Loading
	Loaded
	RequestError
)

func (s RequestState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case RequestError:
		return "error"
	default:
		return "idle"
	}
}

func (s RequestState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *RequestState) UnmarshalText(b []byte) error {
	for _, c := range []RequestState{Idle, Loading, Loaded, RequestError} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown request state %q", b)
}

type Source string

const (
	SourceCache   Source = "cache"
	SourceNetwork Source = "network"
)

type PageCursor struct {
	CurrentPage int  `json:"currentPage"`
	HasMore     bool `json:"hasMore"`
}

// Snapshot is a copy of a view's state, safe to hand to callers.
type Snapshot[T domain.ListItem] struct {
	Resource  string       `json:"resource"`
	State     State        `json:"state"`
	Request   RequestState `json:"request"`
	Source    Source       `json:"source,omitempty"`
	Items     []T          `json:"items"`
	Loaded    int          `json:"loaded"`
	Cursor    PageCursor   `json:"cursor"`
	Filter    *Filter      `json:"filter,omitempty"`
	Error     string       `json:"error,omitempty"`
	FetchedAt time.Time    `json:"fetchedAt"`
}

// view is the state of one (resource, user) list. All fields are guarded by mu;
// network calls happen outside the lock between begin and commit/fail.
type view[T domain.ListItem] struct {
	mu        sync.Mutex
	resource  string
	state     State
	req       RequestState
	source    Source
	items     []T
	cursor    PageCursor
	pageSize  int
	filter    Filter
	shown     []T
	errMsg    string
	fetchedAt time.Time

	// persistMu orders cache writes of this view against its invalidation.
	persistMu sync.Mutex
	dropped   bool
}

func newView[T domain.ListItem](resource string) *view[T] {
	return &view[T]{resource: resource}
}

// begin marks the view as loading and returns the request state it replaced.
// It fails with ErrBusy if a request is already in flight.
func (v *view[T]) begin() (RequestState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.req == Loading {
		return v.req, ErrBusy
	}
	prev := v.req
	v.req = Loading
	return prev, nil
}

// persist runs write unless the view has been dropped.
func (v *view[T]) persist(write func() error) (bool, error) {
	v.persistMu.Lock()
	defer v.persistMu.Unlock()
	if v.dropped {
		return false, nil
	}
	return true, write()
}

// drop marks the view as invalidated and holds off its cache writes until the
// returned function is called.
func (v *view[T]) drop() func() {
	v.persistMu.Lock()
	v.dropped = true
	return v.persistMu.Unlock
}

// release returns a view to its previous request state without changes.
func (v *view[T]) release(prev RequestState) {
	v.mu.Lock()
	v.req = prev
	v.mu.Unlock()
}

// commit installs a new collection. A fresh mount drops the active filter.
func (v *view[T]) commit(items []T, cursor PageCursor, pageSize int, src Source, fetchedAt time.Time, mount bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.items = items
	v.cursor = cursor
	v.pageSize = pageSize
	v.source = src
	v.fetchedAt = fetchedAt
	v.req = Loaded
	v.errMsg = ""
	if mount {
		v.filter = Filter{}
	}
	v.applyFilterLocked()
}

// fail records a failed request. Items, cursor and filter are left untouched.
func (v *view[T]) fail(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.req = RequestError
	v.state = Failed
	v.errMsg = msg
}

func (v *view[T]) search(f Filter) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == Uninitialized {
		return ErrNotLoaded
	}
	v.filter = f
	v.errMsg = ""
	v.applyFilterLocked()
	return nil
}

func (v *view[T]) applyFilterLocked() {
	if v.filter.IsZero() {
		v.state = Ready
		v.shown = v.items
		return
	}
	v.state = Filtered
	v.shown = Search(v.items, v.filter)
}

type loadedState[T domain.ListItem] struct {
	items     []T
	cursor    PageCursor
	pageSize  int
	state     State
	fetchedAt time.Time
}

// loaded returns what a follow-up page request builds on.
func (v *view[T]) loaded() loadedState[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return loadedState[T]{
		items:     v.items,
		cursor:    v.cursor,
		pageSize:  v.pageSize,
		state:     v.state,
		fetchedAt: v.fetchedAt,
	}
}

func (v *view[T]) snapshot() Snapshot[T] {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Snapshot[T]{
		Resource:  v.resource,
		State:     v.state,
		Request:   v.req,
		Source:    v.source,
		Items:     append([]T(nil), v.shown...),
		Loaded:    len(v.items),
		Cursor:    v.cursor,
		Error:     v.errMsg,
		FetchedAt: v.fetchedAt,
	}
	if s.Items == nil {
		s.Items = []T{}
	}
	if !v.filter.IsZero() {
		f := v.filter
		s.Filter = &f
	}
	return s
}
