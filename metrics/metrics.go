package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrike_events_ingested_total",
			Help: "Total number of behavioral events decoded from logs",
		},
		[]string{"format"},
	)

	EventsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrike_events_routed_total",
			Help: "Total number of events dispatched to signature instances",
		},
		[]string{"kind"},
	)

	SignatureEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrike_signature_evaluations_total",
			Help: "Total number of handler invocations delivered to signature instances",
		},
		[]string{"signature"},
	)

	SignatureMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrike_signature_matches_total",
			Help: "Total number of signature matches",
		},
		[]string{"signature"},
	)

	SignatureFaults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrike_signature_faults_total",
			Help: "Total number of signature instances excluded after a handler fault",
		},
		[]string{"signature"},
	)

	MarksRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrike_marks_recorded_total",
			Help: "Total number of evidence marks recorded",
		},
		[]string{"kind"},
	)

	FragmentsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shrike_config_fragments_total",
			Help: "Total number of family configuration fragments accepted",
		},
	)

	FragmentsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shrike_config_fragments_rejected_total",
			Help: "Total number of fragments rejected for a missing family",
		},
	)

	MergeConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shrike_config_merge_conflicts_total",
			Help: "Total number of singleton field conflicts during config merging",
		},
	)

	RegexTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shrike_regex_timeouts_total",
			Help: "Total number of pattern evaluations aborted by the match timeout",
		},
	)

	PatternCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shrike_pattern_cache_hits_total",
			Help: "Total number of compiled pattern cache hits",
		},
	)

	PatternCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shrike_pattern_cache_misses_total",
			Help: "Total number of compiled pattern cache misses",
		},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shrike_analysis_duration_seconds",
			Help:    "Time taken to evaluate one analysis event stream",
			Buckets: prometheus.DefBuckets,
		},
	)

	FindingsPerAnalysis = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shrike_findings_per_analysis",
			Help:    "Number of findings produced per analysis",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	ReportsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shrike_reports_saved_total",
			Help: "Total number of analysis reports persisted",
		},
		[]string{"backend"},
	)
)
