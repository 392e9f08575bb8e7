package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
)

// Recorder collects batch job metrics on a private registry. A nil Recorder is valid and
// records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	jobDuration *prometheus.HistogramVec
	rowsWritten *prometheus.CounterVec
	signals     *prometheus.CounterVec
	decisions   *prometheus.CounterVec
	vetoes      *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "argo_fusion_job_duration_seconds",
				Help:    "Duration of batch jobs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"job", "status"},
		),
		rowsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "argo_fusion_rows_written_total",
				Help: "Rows written to the store",
			},
			[]string{"table"},
		),
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "argo_fusion_signals_total",
				Help: "Inference signals by direction",
			},
			[]string{"direction"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "argo_fusion_fusion_decisions_total",
				Help: "Fusion decisions by mode and direction",
			},
			[]string{"mode", "direction"},
		),
		vetoes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "argo_fusion_fusion_vetoes_total",
				Help: "Long entries blocked by a fusion rule",
			},
			[]string{"reason"},
		),
	}
}

// ObserveJob records the duration and outcome of a job.
func (r *Recorder) ObserveJob(job string, err error, d time.Duration) {
	if r == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failed"
	}

	r.jobDuration.WithLabelValues(job, status).Observe(d.Seconds())
}

// RowsWritten adds n to the rows written for table.
func (r *Recorder) RowsWritten(table string, n int) {
	if r == nil {
		return
	}

	r.rowsWritten.WithLabelValues(table).Add(float64(n))
}

// Signal counts one emitted signal.
func (r *Recorder) Signal(direction types.Direction) {
	if r == nil {
		return
	}

	r.signals.WithLabelValues(direction.String()).Inc()
}

// Decision counts one fusion decision.
func (r *Recorder) Decision(mode string, direction types.Direction) {
	if r == nil {
		return
	}

	r.decisions.WithLabelValues(mode, direction.String()).Inc()
}

// Veto counts one vetoed long entry.
func (r *Recorder) Veto(reason string) {
	if r == nil {
		return
	}

	r.vetoes.WithLabelValues(reason).Inc()
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes every metric in the text exposition format for the node exporter
// textfile collector. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to write metrics to %s", path)
	}

	return nil
}
