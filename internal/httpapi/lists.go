package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/listing"
	"github.com/TemirB/freight-portal/internal/observability"
)

const maxPageSize = 100

// List is a cached upstream collection served per user.
type List[T domain.ListItem] interface {
	LoadInitial(ctx context.Context, user string, p listing.Params) (listing.Snapshot[T], error)
	LoadMore(ctx context.Context, user string, p listing.Params) (listing.Snapshot[T], error)
	Refresh(ctx context.Context, user string, p listing.Params) (listing.Snapshot[T], error)
	Search(user string, f listing.Filter) (listing.Snapshot[T], error)
	ClearSearch(user string) (listing.Snapshot[T], error)
}

// mountList registers the list endpoints under path:
//
//	GET    path          load (cache first)
//	POST   path/more     next page
//	POST   path/refresh  drop the cache and reload
//	GET    path/search   filter what is loaded
//	DELETE path/search   clear the filter
func mountList[T domain.ListItem](r chi.Router, s *Server, path string, l List[T]) {
	if l == nil {
		return
	}
	load := func(op func(context.Context, string, listing.Params) (listing.Snapshot[T], error)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p, ok := pageParams(w, r)
			if !ok {
				return
			}
			snap, err := op(r.Context(), userFrom(r.Context()).Username, p)
			writeList(s, w, r, snap, err)
		}
	}

	r.Get(path, load(l.LoadInitial))
	r.Post(path+"/more", load(l.LoadMore))
	r.Post(path+"/refresh", load(l.Refresh))
	r.Get(path+"/search", func(w http.ResponseWriter, r *http.Request) {
		snap, err := l.Search(userFrom(r.Context()).Username, filterFrom(r))
		writeList(s, w, r, snap, err)
	})
	r.Delete(path+"/search", func(w http.ResponseWriter, r *http.Request) {
		snap, err := l.ClearSearch(userFrom(r.Context()).Username)
		writeList(s, w, r, snap, err)
	})
}

func writeList[T domain.ListItem](s *Server, w http.ResponseWriter, r *http.Request, snap listing.Snapshot[T], err error) {
	if err != nil {
		s.fail(w, r, err, snap)
		return
	}
	if snap.Source != "" {
		w.Header().Set("X-Source", string(snap.Source))
		observability.AppendServerTiming(w, "source", 0, string(snap.Source))
	}
	writeJSON(w, http.StatusOK, snap)
}

func pageParams(w http.ResponseWriter, r *http.Request) (listing.Params, bool) {
	raw := r.URL.Query().Get("pageSize")
	if raw == "" {
		return listing.Params{}, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxPageSize {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "pageSize must be between 1 and " + strconv.Itoa(maxPageSize)})
		return listing.Params{}, false
	}
	return listing.Params{PageSize: n}, true
}

func filterFrom(r *http.Request) listing.Filter {
	q := r.URL.Query()
	return listing.Filter{
		Term:        q.Get("term"),
		Date:        q.Get("date"),
		From:        q.Get("from"),
		To:          q.Get("to"),
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
	}
}
