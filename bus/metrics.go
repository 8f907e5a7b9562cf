package bus

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the Prometheus instruments the bus updates inline on
// its hot paths. Grounded on the client_golang usage found in the
// corpus's backend services (Armour007-redesigned-pancake,
// dep2p-go-dep2p), which register counters/histograms against a
// shared registry at construction and increment them without any
// extra locking beyond what the metric types provide internally.
type metrics struct {
	published        *prometheus.CounterVec
	dropped          *prometheus.CounterVec
	chunkReassembled prometheus.Counter
	chunkEvicted     prometheus.Counter
	dispatchSeconds  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drivebus_published_total",
			Help: "Messages published, by topic.",
		}, []string{"topic"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drivebus_dropped_total",
			Help: "Messages dropped before delivery, by reason.",
		}, []string{"reason"}),
		chunkReassembled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivebus_chunk_reassembled_total",
			Help: "Chunked frames successfully reassembled.",
		}),
		chunkEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drivebus_chunk_evicted_total",
			Help: "Reassembly buffers evicted on timeout.",
		}),
		dispatchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "drivebus_dispatch_seconds",
			Help:    "Wall time spent invoking local subscriber callbacks for one publish.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.published, m.dropped, m.chunkReassembled, m.chunkEvicted, m.dispatchSeconds)
	}
	return m
}
