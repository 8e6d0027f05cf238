package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records coin movement through the ledger.
type SettlementMetrics struct {
	settlements *prometheus.CounterVec
	coinsMoved  *prometheus.CounterVec
	commission  *prometheus.CounterVec
	shortfall   prometheus.Counter
	billedUnits prometheus.Histogram
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_settlements_total",
		Help: "Ledger settlements by transaction kind and outcome.",
	}, []string{"kind", "outcome"})
	coinsMoved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_coins_moved_total",
		Help: "Gross coins moved through the ledger by transaction kind.",
	}, []string{"kind"})
	commission := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_commission_coins_total",
		Help: "Commission coins retained by the platform by transaction kind.",
	}, []string{"kind"})
	shortfall := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_shortfall_units_total",
		Help: "Billable minutes that could not be collected at settlement.",
	})
	billedUnits := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_billed_units",
		Help:    "Billed minutes per settled session.",
		Buckets: []float64{1, 2, 5, 10, 20, 40, 60, 120, 240},
	})
	reg.MustRegister(settlements, coinsMoved, commission, shortfall, billedUnits)
	return &SettlementMetrics{
		settlements: settlements,
		coinsMoved:  coinsMoved,
		commission:  commission,
		shortfall:   shortfall,
		billedUnits: billedUnits,
	}
}

// RecordSettlement increments the settlement counter for a kind/outcome pair
// and accumulates the gross and commission coin counters.
func (s *SettlementMetrics) RecordSettlement(kind, outcome string, gross, commission int64) {
	if s == nil || s.settlements == nil {
		return
	}
	s.settlements.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
	if gross > 0 {
		s.coinsMoved.WithLabelValues(normalizeLabel(kind)).Add(float64(gross))
	}
	if commission > 0 {
		s.commission.WithLabelValues(normalizeLabel(kind)).Add(float64(commission))
	}
}

// ObserveBilledUnits records the billed minutes of a settled session.
func (s *SettlementMetrics) ObserveBilledUnits(units int64) {
	if s == nil || s.billedUnits == nil {
		return
	}
	s.billedUnits.Observe(float64(units))
}

// AddShortfall accumulates minutes the payer could not cover.
func (s *SettlementMetrics) AddShortfall(units int64) {
	if s == nil || s.shortfall == nil || units <= 0 {
		return
	}
	s.shortfall.Add(float64(units))
}
