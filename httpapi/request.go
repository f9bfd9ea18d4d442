package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/poiesic/umbratrace/core"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type searchRequest struct {
	Q       string            `json:"q"`
	Filters *core.FilterState `json:"filters"`
}

type batchRequest struct {
	Queries []string          `json:"queries"`
	Filters *core.FilterState `json:"filters"`
}

// searchFromQuery reads q, confidence (or c) and types from URL parameters.
// A missing q is the empty query.
func searchFromQuery(values url.Values) (searchRequest, error) {
	req := searchRequest{Q: values.Get("q")}

	confidence := values.Get("confidence")
	if confidence == "" {
		confidence = values.Get("c")
	}

	var state core.FilterState
	if confidence != "" {
		c, err := core.ParseConfidenceThreshold(confidence)
		if err != nil {
			return req, err
		}
		state.Confidence = &c
	}

	if types := values.Get("types"); types != "" {
		parsed, err := core.ParseRecordTypes(types)
		if err != nil {
			return req, err
		}
		state.Types = parsed
	}

	if state.Confidence != nil || len(state.Types) > 0 {
		req.Filters = &state
	}
	return req, nil
}

// decodeJSON decodes one JSON document from the request body into v.
// A value of the wrong type under "filters" is an invalid filter rather
// than a malformed request.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", ErrMalformedRequest)
		case errors.As(err, &typeErr) && isFilterField(typeErr.Field):
			return fmt.Errorf("%w: %s must be %s, got %s",
				core.ErrInvalidFilter, typeErr.Field, filterFieldKind(typeErr.Field), typeErr.Value)
		}
		return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", ErrMalformedRequest)
	}
	return nil
}

func isFilterField(field string) bool {
	return field == "filters" || strings.HasPrefix(field, "filters.")
}

func filterFieldKind(field string) string {
	switch field {
	case "filters.confidence":
		return "a number"
	case "filters.types":
		return "a list of record types"
	case "filters":
		return "an object"
	default:
		return "a string"
	}
}

// limitFromQuery parses an optional positive limit parameter.
func limitFromQuery(values url.Values, fallback int) (int, error) {
	raw := values.Get("limit")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit %q must be a positive integer", ErrMalformedRequest, raw)
	}
	return n, nil
}
