package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	slotSearches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reservio",
			Name:      "slot_searches_total",
			Help:      "Count of slot search requests.",
		},
	)

	holdsPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservio",
			Name:      "holds_placed_total",
			Help:      "Count of hold attempts by result.",
		},
		[]string{"result"},
	)

	holdsReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reservio",
			Name:      "holds_released_total",
			Help:      "Count of holds released by clients.",
		},
	)

	holdsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reservio",
			Name:      "holds_swept_total",
			Help:      "Count of expired holds removed by the sweep.",
		},
	)

	bookingsConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservio",
			Name:      "bookings_confirmed_total",
			Help:      "Count of confirmation attempts by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservio",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by endpoint and status class.",
		},
		[]string{"endpoint", "status"},
	)

	liveHolds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "reservio",
			Name:      "live_holds",
			Help:      "Current number of live holds.",
		},
	)

	expiredPendingSweep = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "reservio",
			Name:      "expired_holds_pending_sweep",
			Help:      "Expired hold entries not yet removed by the sweep.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			slotSearches, holdsPlaced, holdsReleased, holdsSwept,
			bookingsConfirmed, httpRequests, liveHolds, expiredPendingSweep,
		)
	})
}

func IncSlotSearch() {
	slotSearches.Inc()
}

func IncHoldPlaced(result string) {
	holdsPlaced.WithLabelValues(result).Inc()
}

func IncHoldReleased() {
	holdsReleased.Inc()
}

func AddHoldsSwept(n int) {
	holdsSwept.Add(float64(n))
}

func IncBookingConfirmed(result string) {
	bookingsConfirmed.WithLabelValues(result).Inc()
}

func IncHTTPRequest(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

func SetLiveHolds(n int) {
	liveHolds.Set(float64(n))
}

func SetExpiredPendingSweep(n int) {
	expiredPendingSweep.Set(float64(n))
}
