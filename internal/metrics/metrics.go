package metrics

import (
	"context"
	"sync"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slotbook"

var (
	once      sync.Once
	gaugeOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_created_total",
		Help:      "Bookings accepted and persisted.",
	})

	bookingsCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_cancelled_total",
		Help:      "Bookings cancelled.",
	})

	bookingsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_rejected_total",
			Help:      "Booking attempts rejected by reason.",
		},
		[]string{"reason"},
	)

	storeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Booking store failures by operation.",
		},
		[]string{"op"},
	)

	storeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Booking store call latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingsCreated,
			bookingsCancelled,
			bookingsRejected,
			storeErrors,
			storeDuration,
		)
	})
}

// RegisterIndexGauge exposes index_bookings, read from stats at scrape time.
// Only the first call registers.
func RegisterIndexGauge(stats func() domain.IndexStats) {
	gaugeOnce.Do(func() {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_bookings",
				Help:      "Bookings held in the in-memory slot index.",
			},
			func() float64 { return float64(stats().Bookings) },
		))
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncStoreError(op string) {
	storeErrors.WithLabelValues(op).Inc()
}

// Subscribe counts booking lifecycle events published on bus.
func Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCreated, func(*events.Event) error {
		bookingsCreated.Inc()
		return nil
	})
	bus.Subscribe(events.EventBookingCancelled, func(*events.Event) error {
		bookingsCancelled.Inc()
		return nil
	})
	bus.Subscribe(events.EventBookingRejected, func(e *events.Event) error {
		p, err := events.DecodeBookingPayload(e)
		reason := p.Reason
		if err != nil || reason == "" {
			reason = "unknown"
		}
		bookingsRejected.WithLabelValues(reason).Inc()
		return err
	})
}

type instrumentedStore struct {
	next domain.BookingStore
}

// InstrumentStore wraps a booking store with latency and error metrics.
func InstrumentStore(next domain.BookingStore) domain.BookingStore {
	return &instrumentedStore{next: next}
}

func observe(op string, start time.Time, err error) {
	storeDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		IncStoreError(op)
	}
}

func (s *instrumentedStore) FetchAll(ctx context.Context) ([]models.BookingRecord, error) {
	start := time.Now()
	records, err := s.next.FetchAll(ctx)
	observe("fetch_all", start, err)
	return records, err
}

func (s *instrumentedStore) Insert(ctx context.Context, record models.BookingRecord) (string, error) {
	start := time.Now()
	id, err := s.next.Insert(ctx, record)
	observe("insert", start, err)
	return id, err
}

func (s *instrumentedStore) RemoveByID(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.RemoveByID(ctx, id)
	observe("remove", start, err)
	return err
}
