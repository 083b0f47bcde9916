package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var framesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "frames_total",
	Help:      "Frames exchanged with charge points.",
}, []string{"direction", "message_type"})

var callErrorsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "call_errors_total",
	Help:      "CallError frames sent in answer to inbound calls.",
}, []string{"error_code"})

var sessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "ocpp",
	Name:      "sessions_active",
	Help:      "Number of active charge point sessions.",
})

var cyclesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "smartcharging",
	Name:      "cycles_total",
	Help:      "Smart charging evaluations by outcome.",
}, []string{"outcome"})

var limitGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "smartcharging",
	Name:      "applied_limit",
	Help:      "Last charging limit applied to a charge point.",
}, []string{"charge_point_id"})

var solarGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "solar",
	Name:      "power_watts",
	Help:      "Last instantaneous solar production reading.",
})

// Frame directions.
const (
	Inbound  = "in"
	Outbound = "out"
)

func CountFrame(direction, messageType string) {
	if len(direction) == 0 || len(messageType) == 0 {
		return
	}
	framesCounter.With(prometheus.Labels{"direction": direction, "message_type": messageType}).Inc()
}

func CountCallError(code string) {
	if len(code) == 0 {
		return
	}
	callErrorsCounter.With(prometheus.Labels{"error_code": code}).Inc()
}

func ObserveSessions(count int) {
	sessionsGauge.Set(float64(count))
}

func CountCycle(outcome string) {
	if len(outcome) == 0 {
		return
	}
	cyclesCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func ObserveLimit(chargePointID string, limit float64) {
	if len(chargePointID) == 0 {
		return
	}
	limitGauge.With(prometheus.Labels{"charge_point_id": chargePointID}).Set(limit)
}

// ForgetLimit drops the series of a disconnected charge point.
func ForgetLimit(chargePointID string) {
	limitGauge.Delete(prometheus.Labels{"charge_point_id": chargePointID})
}

func ObserveSolarPower(watts float64) {
	solarGauge.Set(watts)
}
