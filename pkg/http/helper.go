package http

import (
	"math"
	"net/http"
	apperrors "roomly/pkg/errors"
	"strconv"
)

// ExtractPage reads page_size and page_number from the query string.
// Missing values fall back to defaultSize and 0; sizes are clamped to maxSize.
func ExtractPage(r *http.Request, defaultSize, maxSize int) (int, int, error) {
	query := r.URL.Query()

	pageSize := defaultSize
	if s := query.Get("page_size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return 0, 0, apperrors.InvalidInput("invalid page_size parameter: " + s)
		}
		if v > 0 {
			pageSize = v
		}
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}

	pageNumber := 0
	if s := query.Get("page_number"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return 0, 0, apperrors.InvalidInput("invalid page_number parameter: " + s)
		}
		if pageSize > 0 && int64(v) > math.MaxInt64/int64(pageSize) {
			return 0, 0, apperrors.InvalidInput("page_number out of range: " + s)
		}
		pageNumber = v
	}

	return pageSize, pageNumber, nil
}

// OptionalInt64 parses an optional positive integer query parameter.
func OptionalInt64(r *http.Request, name string) (*int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return nil, apperrors.InvalidInput("invalid " + name + " parameter: " + s)
	}
	return &v, nil
}

// ParseID parses a positive integer path identifier.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput("Invalid reservation ID format: " + raw)
	}
	return id, nil
}
