package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GateVetoesTotal counts order candidates rejected by the risk gate,
	// labelled by the gate that vetoed them.
	GateVetoesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_engine_risk_gate_vetoes_total",
		Help: "Total order candidates rejected by the risk gate, by gate name",
	}, []string{"gate"})

	// GateAllowedTotal counts order candidates that cleared every gate.
	GateAllowedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_engine_risk_gate_allowed_total",
		Help: "Total order candidates that cleared every risk gate",
	})

	// NBAMasterSwitchEnabled is registered for the ENABLE_NBA_TRADING state;
	// no code path sets it, so it reads 0.
	NBAMasterSwitchEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_engine_nba_master_switch_enabled",
		Help: "Whether NBA trading is enabled (1=enabled, 0=disabled); monitoring continues either way",
	})

	// ActiveStopLossCooldowns is registered for the cooldown set size; no
	// code path sets it, so it reads 0.
	ActiveStopLossCooldowns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_engine_active_stop_loss_cooldowns",
		Help: "Number of events currently blocked by a stop-loss cooldown",
	})
)

// RecordDecision updates the veto/allowed counters for a single gate
// evaluation.
func RecordDecision(d Decision) {
	if d.Allowed {
		GateAllowedTotal.Inc()
		return
	}
	GateVetoesTotal.WithLabelValues(d.Reason).Inc()
}
