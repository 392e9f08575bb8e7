package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func (suite *MetricsTestSuite) TestCounters() {
	r := NewRecorder()

	r.Signal(types.DirectionBuy)
	r.Signal(types.DirectionBuy)
	r.Signal(types.DirectionHold)
	r.RowsWritten("labels", 42)
	r.Decision("rules", types.DirectionSell)
	r.Veto("regulatory")

	suite.Equal(2.0, suite.value(r, "argo_fusion_signals_total", "BUY"))
	suite.Equal(1.0, suite.value(r, "argo_fusion_signals_total", "HOLD"))
	suite.Equal(42.0, suite.value(r, "argo_fusion_rows_written_total", "labels"))
	suite.Equal(1.0, suite.value(r, "argo_fusion_fusion_decisions_total", "SELL"))
	suite.Equal(1.0, suite.value(r, "argo_fusion_fusion_vetoes_total", "regulatory"))
}

// value returns the counter of family name whose labels include labelValue.
func (suite *MetricsTestSuite) value(r *Recorder, name, labelValue string) float64 {
	families, err := r.Gatherer().Gather()
	suite.Require().NoError(err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}

		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}

	return 0
}

func (suite *MetricsTestSuite) TestNilRecorderIsNoop() {
	var r *Recorder

	suite.NotPanics(func() {
		r.Signal(types.DirectionBuy)
		r.RowsWritten("labels", 1)
		r.ObserveJob("labels", nil, time.Second)
		r.Decision("rules", types.DirectionBuy)
		r.Veto("security")
	})
	suite.NoError(r.WriteTextfile("/nonexistent/metrics.prom"))
}

func (suite *MetricsTestSuite) TestWriteTextfile() {
	r := NewRecorder()
	r.ObserveJob("train", nil, 2*time.Second)
	r.Signal(types.DirectionSell)

	path := filepath.Join(suite.T().TempDir(), "argo.prom")
	suite.Require().NoError(r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	suite.Require().NoError(err)
	suite.Contains(string(data), `argo_fusion_signals_total{direction="SELL"} 1`)
	suite.Contains(string(data), `argo_fusion_job_duration_seconds_count{job="train",status="success"} 1`)
}
