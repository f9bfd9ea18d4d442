package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/poiesic/umbratrace/core"
	"github.com/poiesic/umbratrace/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v with the given status. HTML characters are not escaped.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeError maps err onto a status code. Internal errors are logged and
// their detail is not exposed.
func writeError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "request_id", RequestID(ctx), "err", err)
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidFilter),
		errors.Is(err, storage.ErrInvalidQuery),
		errors.Is(err, ErrMalformedRequest),
		errors.Is(err, ErrEmptyBatch),
		errors.Is(err, ErrBatchTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// etag derives a strong validator from the query, the summary and the full
// serialized results. The timestamp is left out so repeated identical
// searches share a tag.
func etag(resp *core.Response) (string, error) {
	data, err := json.Marshal(struct {
		Query   string              `json:"query"`
		Summary core.Summary        `json:"summary"`
		Results []core.MergedRecord `json:"results"`
	}{resp.Query, resp.Summary, resp.Results})
	if err != nil {
		return "", fmt.Errorf("failed to compute etag: %w", err)
	}
	return fmt.Sprintf(`"%016x"`, uint64(core.IDFromContent(string(data)))), nil
}

// etagMatches reports whether an If-None-Match header covers tag.
func etagMatches(header, tag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == tag {
			return true
		}
	}
	return false
}
