package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SightingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkwatch_sightings_total",
		Help: "Plate sightings processed.",
	})
	ViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkwatch_violations_total",
		Help: "Sightings with no active booking.",
	})
	OverstaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkwatch_overstays_total",
		Help: "Sightings of vehicles past their booking end.",
	})
	ThreatsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkwatch_threats_detected_total",
		Help: "Positive weapon findings.",
	})
	FiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkwatch_fires_detected_total",
		Help: "Positive fire findings.",
	})
	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parkwatch_stream_clients",
		Help: "Connected change-feed clients.",
	})
)
