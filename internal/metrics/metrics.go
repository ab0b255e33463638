package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the ingestion pipeline and
// retrieval engine.
type Metrics struct {
	FilesParsed        *prometheus.CounterVec
	RegexFallbacks     prometheus.Counter
	EntitiesIngested   prometheus.Counter
	EmbeddingErrors    prometheus.Counter
	ParseDuration      prometheus.Histogram
	IngestDuration     prometheus.Histogram
	RetrievalDuration  *prometheus.HistogramVec
	RetrievalFailures  *prometheus.CounterVec
	IndexRunsTotal     *prometheus.CounterVec
}

var (
	once     sync.Once
	instance *Metrics
)

// Get returns the process-wide metrics, registering them on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			FilesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "codeatlas_files_parsed_total",
				Help: "Files parsed, labeled by detected language.",
			}, []string{"language"}),
			RegexFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "codeatlas_regex_fallbacks_total",
				Help: "Files where model extraction yielded nothing and the regex engine ran.",
			}),
			EntitiesIngested: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "codeatlas_entities_ingested_total",
				Help: "Entities written to the graph.",
			}),
			EmbeddingErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "codeatlas_embedding_errors_total",
				Help: "Embedding calls that failed and fell back to zero vectors.",
			}),
			ParseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "codeatlas_parse_duration_seconds",
				Help:    "Time to parse one file.",
				Buckets: prometheus.DefBuckets,
			}),
			IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "codeatlas_ingest_duration_seconds",
				Help:    "Time to write one parsed file to the graph.",
				Buckets: prometheus.DefBuckets,
			}),
			RetrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "codeatlas_retrieval_duration_seconds",
				Help:    "Time to assemble graph context for a question.",
				Buckets: prometheus.DefBuckets,
			}, []string{"mode"}),
			RetrievalFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "codeatlas_retrieval_strategy_failures_total",
				Help: "Retrieval strategies that errored and were skipped.",
			}, []string{"strategy"}),
			IndexRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "codeatlas_index_runs_total",
				Help: "Repository indexing runs by outcome.",
			}, []string{"status"}),
		}

		prometheus.MustRegister(
			instance.FilesParsed,
			instance.RegexFallbacks,
			instance.EntitiesIngested,
			instance.EmbeddingErrors,
			instance.ParseDuration,
			instance.IngestDuration,
			instance.RetrievalDuration,
			instance.RetrievalFailures,
			instance.IndexRunsTotal,
		)
	})
	return instance
}
