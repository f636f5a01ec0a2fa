package reporting

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// The dashboard renders amounts the way Algerian finance teams read them:
// French digit grouping with the dinar abbreviation.
var dzdPrinter = message.NewPrinter(language.French)

// FormatDZD renders an amount in Algerian dinars for display strings.
func FormatDZD(amount float64) string {
	return dzdPrinter.Sprintf("%v DA", number.Decimal(amount, number.MaxFractionDigits(2)))
}

func decorateRevenue(k *RevenueKPIs) {
	k.BilledDisplay = FormatDZD(k.BilledDZD)
	k.CollectedDisplay = FormatDZD(k.CollectedDZD)
}

func decorateCollections(k *CollectionsKPIs) {
	k.TargetDisplay = FormatDZD(k.TargetDZD)
	k.CollectedDisplay = FormatDZD(k.CollectedDZD)
}

func decorateReceivables(k *ReceivablesKPIs) {
	k.OutstandingDisplay = FormatDZD(k.OutstandingDZD)
	k.OverdueDisplay = FormatDZD(k.OverdueDZD)
}
