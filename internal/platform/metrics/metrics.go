package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TransfersApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readsync_transfers_applied_total",
			Help: "Inbound transfers applied by the reconciler",
		},
		[]string{"kind"},
	)

	TransfersDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readsync_transfers_dropped_total",
			Help: "Inbound transfers dropped before mutation",
		},
		[]string{"kind", "reason"},
	)

	DuplicateMerges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "readsync_duplicate_session_merges_total",
			Help: "Session records merged by the time-window duplicate heuristic",
		},
	)

	SkewCorrections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "readsync_clock_skew_corrections_total",
			Help: "Transfers whose embedded timestamps were shifted by a measured offset",
		},
	)

	SendFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "readsync_send_fallbacks_total",
			Help: "Immediate sends re-queued on the guaranteed channel",
		},
	)

	PendingQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "readsync_pending_queue_depth",
			Help: "Transfers waiting in the durable outbound queue",
		},
	)

	FullStateExports = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "readsync_full_state_exports_total",
			Help: "Full-state snapshots published to the peer",
		},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		TransfersApplied,
		TransfersDropped,
		DuplicateMerges,
		SkewCorrections,
		SendFallbacks,
		PendingQueueDepth,
		FullStateExports,
	)
}
