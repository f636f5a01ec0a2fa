package reporting

import "time"

// Deterministic sample payloads served while the reporting service is down
// in non production environments. Amounts are stable so screenshots and
// tests do not drift.

func sampleRevenue(period string) RevenueKPIs {
	k := RevenueKPIs{
		Period:       period,
		BilledDZD:    842_500_000,
		CollectedDZD: 791_200_000,
		GrowthPct:    3.4,
		Source:       SourceFallback,
	}
	decorateRevenue(&k)
	return k
}

func sampleCollections(period string) CollectionsKPIs {
	k := CollectionsKPIs{
		Period:       period,
		TargetDZD:    850_000_000,
		CollectedDZD: 791_200_000,
		RatePct:      93.1,
		OpenInvoices: 1240,
		Source:       SourceFallback,
	}
	decorateCollections(&k)
	return k
}

func sampleReceivables(asOf time.Time) ReceivablesKPIs {
	k := ReceivablesKPIs{
		AsOf:           asOf.Format("2006-01-02"),
		OutstandingDZD: 412_800_000,
		OverdueDZD:     96_400_000,
		Buckets: []ReceivableBucket{
			{Label: "0-30", AmountDZD: 221_300_000},
			{Label: "31-60", AmountDZD: 95_100_000},
			{Label: "61-90", AmountDZD: 41_700_000},
			{Label: "90+", AmountDZD: 54_700_000},
		},
		Source: SourceFallback,
	}
	decorateReceivables(&k)
	return k
}

func sampleVehiclePark() VehicleParkStats {
	return VehicleParkStats{
		Total:         248,
		Active:        203,
		InMaintenance: 31,
		OutOfService:  14,
		Source:        SourceFallback,
	}
}
