package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/entities"
)

// Collector holds Prometheus metrics for batch runs, RPC retries and payments
type Collector struct {
	blocksProcessed  *prometheus.CounterVec
	txsIndexed       *prometheus.CounterVec
	eventsIndexed    *prometheus.CounterVec
	lastIndexedBlock *prometheus.GaugeVec
	batchDuration    *prometheus.HistogramVec
	batchErrors      *prometheus.CounterVec
	batchSkipped     *prometheus.CounterVec
	cursorLag        *prometheus.GaugeVec
	rpcRetries       *prometheus.CounterVec
	payments         *prometheus.CounterVec
}

// NewCollector registers every metric with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		blocksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_blocks_processed_total",
			Help: "Total number of blocks committed",
		}, []string{"indexer"}),
		txsIndexed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_transactions_indexed_total",
			Help: "Total number of transactions committed",
		}, []string{"indexer"}),
		eventsIndexed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_events_indexed_total",
			Help: "Total number of events committed",
		}, []string{"indexer"}),
		lastIndexedBlock: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "indexer_last_indexed_block",
			Help: "Last committed block number",
		}, []string{"indexer"}),
		batchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indexer_batch_duration_seconds",
			Help:    "Time taken to fetch and commit a batch",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"indexer"}),
		batchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_batch_errors_total",
			Help: "Total number of failed batches",
		}, []string{"indexer", "reason"}),
		batchSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_batch_skipped_total",
			Help: "Batches skipped because another run held the indexer",
		}, []string{"indexer"}),
		cursorLag: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "indexer_cursor_lag_blocks",
			Help: "Chain head minus last committed block",
		}, []string{"indexer"}),
		rpcRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_rpc_retries_total",
			Help: "Total number of retried RPC calls",
		}, []string{"network", "operation"}),
		payments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_settled_total",
			Help: "Payments by final status and error kind",
		}, []string{"status", "error_kind"}),
	}
}

// BatchCommitted records a successful batch
func (c *Collector) BatchCommitted(indexerID string, r entities.BlockRange, txs, events int, took time.Duration) {
	c.blocksProcessed.WithLabelValues(indexerID).Add(float64(r.Len()))
	c.txsIndexed.WithLabelValues(indexerID).Add(float64(txs))
	c.eventsIndexed.WithLabelValues(indexerID).Add(float64(events))
	c.lastIndexedBlock.WithLabelValues(indexerID).Set(float64(r.To))
	c.batchDuration.WithLabelValues(indexerID).Observe(took.Seconds())
}

// BatchFailed records a failed batch
func (c *Collector) BatchFailed(indexerID, reason string) {
	c.batchErrors.WithLabelValues(indexerID, reason).Inc()
}

// BatchSkipped records a run that found the indexer locked
func (c *Collector) BatchSkipped(indexerID string) {
	c.batchSkipped.WithLabelValues(indexerID).Inc()
}

// CursorLag records the distance between chain head and cursor
func (c *Collector) CursorLag(indexerID string, lag uint64) {
	c.cursorLag.WithLabelValues(indexerID).Set(float64(lag))
}

// RPCRetry records one retried RPC call
func (c *Collector) RPCRetry(network, operation string) {
	c.rpcRetries.WithLabelValues(network, operation).Inc()
}

// PaymentSettled records the final state of a payment
func (c *Collector) PaymentSettled(status entities.PaymentStatus, kind entities.PaymentErrorKind) {
	c.payments.WithLabelValues(string(status), string(kind)).Inc()
}
