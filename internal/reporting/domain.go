// Package reporting serves the dashboard KPI blocks backed by the external
// reporting service, with Redis caching and sample fallback outside
// production.
package reporting

import (
	"fmt"
	"regexp"
	"time"

	"github.com/trunkline-ops/trunkline/internal/shared"
)

// SourceFallback marks payloads substituted with sample data while the
// reporting service is unreachable. Live payloads leave Source empty.
const SourceFallback = "fallback"

var periodRegex = regexp.MustCompile(`^\d{4}-\d{2}$`)

// RevenueKPIs summarises billed versus collected revenue for one month.
type RevenueKPIs struct {
	Period           string  `json:"period"`
	BilledDZD        float64 `json:"billed_dzd"`
	CollectedDZD     float64 `json:"collected_dzd"`
	GrowthPct        float64 `json:"growth_pct"`
	BilledDisplay    string  `json:"billed_display,omitempty"`
	CollectedDisplay string  `json:"collected_display,omitempty"`
	Source           string  `json:"source,omitempty"`
}

// CollectionsKPIs tracks the monthly collection campaign against its target.
type CollectionsKPIs struct {
	Period           string  `json:"period"`
	TargetDZD        float64 `json:"target_dzd"`
	CollectedDZD     float64 `json:"collected_dzd"`
	RatePct          float64 `json:"rate_pct"`
	OpenInvoices     int     `json:"open_invoices"`
	TargetDisplay    string  `json:"target_display,omitempty"`
	CollectedDisplay string  `json:"collected_display,omitempty"`
	Source           string  `json:"source,omitempty"`
}

// ReceivableBucket is a single aging bucket of outstanding receivables.
type ReceivableBucket struct {
	Label     string  `json:"label"`
	AmountDZD float64 `json:"amount_dzd"`
}

// ReceivablesKPIs is the receivables aging snapshot as of a given day.
type ReceivablesKPIs struct {
	AsOf               string             `json:"as_of"`
	OutstandingDZD     float64            `json:"outstanding_dzd"`
	OverdueDZD         float64            `json:"overdue_dzd"`
	Buckets            []ReceivableBucket `json:"buckets"`
	OutstandingDisplay string             `json:"outstanding_display,omitempty"`
	OverdueDisplay     string             `json:"overdue_display,omitempty"`
	Source             string             `json:"source,omitempty"`
}

// VehicleParkStats describes the corporate vehicle park used by field crews.
type VehicleParkStats struct {
	Total         int    `json:"total"`
	Active        int    `json:"active"`
	InMaintenance int    `json:"in_maintenance"`
	OutOfService  int    `json:"out_of_service"`
	Source        string `json:"source,omitempty"`
}

// Summary aggregates every KPI block for the dashboard landing page.
type Summary struct {
	Revenue     RevenueKPIs      `json:"revenue"`
	Collections CollectionsKPIs  `json:"collections"`
	Receivables ReceivablesKPIs  `json:"receivables"`
	VehiclePark VehicleParkStats `json:"vehicle_park"`
	GeneratedAt time.Time        `json:"generated_at"`
	Source      string           `json:"source,omitempty"`
}

// normalizePeriod defaults an empty period to the current month and rejects
// anything that is not a valid YYYY-MM month.
func normalizePeriod(raw string, now time.Time) (string, error) {
	if raw == "" {
		return now.UTC().Format("2006-01"), nil
	}
	if !periodRegex.MatchString(raw) {
		return "", fmt.Errorf("reporting: period %q: %w", raw, shared.ErrInvalidInput)
	}
	if _, err := time.Parse("2006-01", raw); err != nil {
		return "", fmt.Errorf("reporting: period %q: %w", raw, shared.ErrInvalidInput)
	}
	return raw, nil
}
