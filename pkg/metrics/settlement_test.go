package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSettlementMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSettlementMetrics(reg)

	metrics.RecordSettlement("session_payment", "settled", 20, 4)
	metrics.RecordSettlement("session_payment", "partial", 10, 2)
	metrics.RecordSettlement("gift_payment", "settled", 150, 30)
	metrics.ObserveBilledUnits(2)
	metrics.AddShortfall(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "ledger_settlements_total", "outcome", "partial"); err != nil {
		t.Fatalf("fetch settlements: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1 partial settlement, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ledger_coins_moved_total", "kind", "session_payment"); err != nil {
		t.Fatalf("fetch coins moved: %v", err)
	} else if got != 30 {
		t.Fatalf("expected 30 coins moved for sessions, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ledger_commission_coins_total", "kind", "gift_payment"); err != nil {
		t.Fatalf("fetch commission: %v", err)
	} else if got != 30 {
		t.Fatalf("expected 30 commission coins for gifts, got %f", got)
	}

	shortfall := findMetricFamily(mfs, "session_shortfall_units_total")
	if shortfall == nil || len(shortfall.GetMetric()) == 0 {
		t.Fatalf("shortfall counter not exported")
	}
	if got := shortfall.GetMetric()[0].GetCounter().GetValue(); got != 3 {
		t.Fatalf("expected shortfall 3, got %f", got)
	}

	billed := findMetricFamily(mfs, "session_billed_units")
	if billed == nil || len(billed.GetMetric()) == 0 {
		t.Fatalf("billed units histogram not exported")
	}
	if got := billed.GetMetric()[0].GetHistogram().GetSampleSum(); got != 2 {
		t.Fatalf("expected billed units sum 2, got %f", got)
	}
}

func TestSettlementMetricsNilSafe(t *testing.T) {
	var metrics *SettlementMetrics
	metrics.RecordSettlement("session_payment", "settled", 1, 0)
	metrics.ObserveBilledUnits(1)
	metrics.AddShortfall(1)

	empty := NewSettlementMetrics(nil)
	empty.RecordSettlement("session_payment", "settled", 1, 0)
	empty.ObserveBilledUnits(1)
	empty.AddShortfall(1)
}
