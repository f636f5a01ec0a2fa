package audit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

func TestParseFiltersDefaults(t *testing.T) {
	h := &Handler{now: fixedNow}
	r := httptest.NewRequest("GET", "/api/audit", nil)

	filters, err := h.parseFilters(r)
	require.NoError(t, err)
	require.Equal(t, 1, filters.Page)
	require.Equal(t, defaultPageSize, filters.Limit)
	// defaults to a one week window ending today (inclusive)
	require.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), filters.To)
	require.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), filters.From)
}

func TestParseFiltersRejectsInvertedRange(t *testing.T) {
	h := &Handler{now: fixedNow}
	r := httptest.NewRequest("GET", "/api/audit?from=2025-03-09&to=2025-03-01", nil)

	_, err := h.parseFilters(r)
	require.Error(t, err)
}

func TestParseFiltersRejectsOversizedRange(t *testing.T) {
	h := &Handler{now: fixedNow}
	r := httptest.NewRequest("GET", "/api/audit?from=2024-01-01&to=2025-03-01", nil)

	_, err := h.parseFilters(r)
	require.Error(t, err)
}

func TestParseFiltersCapsLimit(t *testing.T) {
	h := &Handler{now: fixedNow}
	r := httptest.NewRequest("GET", "/api/audit?limit=500", nil)

	filters, err := h.parseFilters(r)
	require.NoError(t, err)
	require.Equal(t, maxPageSize, filters.Limit)
}

func TestParseFiltersBadPage(t *testing.T) {
	h := &Handler{now: fixedNow}
	r := httptest.NewRequest("GET", "/api/audit?page=zero", nil)

	_, err := h.parseFilters(r)
	require.Error(t, err)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	// must not panic
	rec.Record(t.Context(), Entry{Actor: "x", Action: ActionLogin})
}
