package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoundsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpsp_rounds_resolved_total",
		Help: "Rounds resolved, by verdict.",
	}, []string{"verdict"})

	MatchesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rpsp_matches_finished_total",
		Help: "Matches that reached the points target.",
	})

	StoreConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpsp_store_conflicts_total",
		Help: "Room transactions retried because the document changed underneath them.",
	}, []string{"store"})

	ActiveRooms = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rpsp_active_rooms",
		Help: "Rooms currently held by the store.",
	}, []string{"store"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpsp_http_requests_total",
		Help: "HTTP requests, by route and status code.",
	}, []string{"route", "code"})

	ShotsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rpsp_shots_recorded_total",
		Help: "Shots recorded by the shot timer.",
	})
)
