package httpapi

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/poiesic/umbratrace/core"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearchQuery(w http.ResponseWriter, r *http.Request) {
	req, err := searchFromQuery(r.URL.Query())
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	s.search(w, r, req)
}

func (s *Server) handleSearchBody(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	s.search(w, r, req)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, req searchRequest) {
	resp, err := s.engine.Search(r.Context(), req.Q, req.Filters)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}

	tag, err := etag(resp)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	w.Header().Set("Cache-Control", s.cacheControl())
	w.Header().Set("ETag", tag)
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) cacheControl() string {
	return fmt.Sprintf("public, max-age=%d", int(s.config.CacheMaxAge.Seconds()))
}

func (s *Server) handleSearchBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	switch {
	case len(req.Queries) == 0:
		writeError(r.Context(), w, s.logger, ErrEmptyBatch)
		return
	case len(req.Queries) > s.config.MaxBatchQueries:
		writeError(r.Context(), w, s.logger,
			fmt.Errorf("%w: %d queries, at most %d allowed", ErrBatchTooLarge, len(req.Queries), s.config.MaxBatchQueries))
		return
	}

	results, err := s.engine.SearchBatch(r.Context(), req.Queries, req.Filters)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}

	responses := make([]*core.Response, len(results))
	for i, result := range results {
		if result.Err != nil {
			writeError(r.Context(), w, s.logger, fmt.Errorf("query %q: %w", result.Query, result.Err))
			return
		}
		responses[i] = result.Response
	}
	writeJSON(w, http.StatusOK, responses)
}

func (s *Server) handleRecentList(w http.ResponseWriter, r *http.Request) {
	limit, err := limitFromQuery(r.URL.Query(), s.config.HistoryCapacity)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}

	entries, err := s.engine.History().List(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	if entries == nil {
		entries = []core.RecentSearch{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRecentRemove(w http.ResponseWriter, r *http.Request) {
	// chi matches on the raw path when the request carries escaped slashes
	term := chi.URLParam(r, "term")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(term)
		if err != nil {
			writeError(r.Context(), w, s.logger, fmt.Errorf("%w: %w", ErrMalformedRequest, err))
			return
		}
		term = unescaped
	}

	if err := s.engine.History().Remove(r.Context(), term); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecentClear(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.History().Clear(r.Context()); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
