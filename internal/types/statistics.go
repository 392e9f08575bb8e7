package types

import (
	"fmt"
	"os"
	"time"

	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"
)

// ClassificationMetrics summarises predicted classes against realised labels.
type ClassificationMetrics struct {
	Accuracy     optional.Option[float64]
	PrecisionBuy optional.Option[float64]
	RecallBuy    optional.Option[float64]
	F1Buy        optional.Option[float64]
	Samples      int
}

// PortfolioMetrics are the results of the long/short basket simulation.
type PortfolioMetrics struct {
	Sharpe         optional.Option[float64]
	MaxDrawdown    optional.Option[float64]
	TotalReturn    optional.Option[float64]
	WinRate        optional.Option[float64]
	TotalTrades    int
	TradingDays    int
	AvgHoldingDays float64
}

// BacktestResult is the out-of-sample evaluation of one walk-forward window.
type BacktestResult struct {
	ID             string
	ModelID        int64
	Window         int
	Train          DateRange
	Validation     DateRange
	Universe       string
	IC1d           optional.Option[float64]
	IC3d           optional.Option[float64]
	IC7d           optional.Option[float64]
	ICMean         optional.Option[float64]
	ICStd          optional.Option[float64]
	ICIR           optional.Option[float64]
	ICDays         int
	Classification ClassificationMetrics
	Portfolio      PortfolioMetrics
	Degenerate     bool
	Notes          string
	CreatedAt      time.Time
}

// backtestReport is the YAML shape of a BacktestResult. Undefined metrics are written as null.
type backtestReport struct {
	ID             string    `yaml:"id"`
	ModelID        int64     `yaml:"model_id"`
	Window         int       `yaml:"window"`
	TrainFrom      time.Time `yaml:"train_from"`
	TrainTo        time.Time `yaml:"train_to"`
	ValidationFrom time.Time `yaml:"validation_from"`
	ValidationTo   time.Time `yaml:"validation_to"`
	Universe       string    `yaml:"universe"`
	IC1d           *float64  `yaml:"ic_1d"`
	IC3d           *float64  `yaml:"ic_3d"`
	IC7d           *float64  `yaml:"ic_7d"`
	ICMean         *float64  `yaml:"ic_mean"`
	ICStd          *float64  `yaml:"ic_std"`
	ICIR           *float64  `yaml:"icir"`
	Accuracy       *float64  `yaml:"accuracy"`
	PrecisionBuy   *float64  `yaml:"precision_buy"`
	RecallBuy      *float64  `yaml:"recall_buy"`
	F1Buy          *float64  `yaml:"f1_buy"`
	Sharpe         *float64  `yaml:"sharpe"`
	MaxDrawdown    *float64  `yaml:"max_drawdown"`
	TotalReturn    *float64  `yaml:"total_return"`
	WinRate        *float64  `yaml:"win_rate"`
	TotalTrades    int       `yaml:"total_trades"`
	AvgHoldingDays float64   `yaml:"avg_holding_days"`
	Degenerate     bool      `yaml:"degenerate"`
	Notes          string    `yaml:"notes,omitempty"`
}

// Ptr converts an optional value to a pointer, nil when absent.
func Ptr[T any](o optional.Option[T]) *T {
	if o.IsNone() {
		return nil
	}

	v := o.Unwrap()

	return &v
}

func newBacktestReport(r BacktestResult) backtestReport {
	return backtestReport{
		ID:             r.ID,
		ModelID:        r.ModelID,
		Window:         r.Window,
		TrainFrom:      r.Train.From,
		TrainTo:        r.Train.To,
		ValidationFrom: r.Validation.From,
		ValidationTo:   r.Validation.To,
		Universe:       r.Universe,
		IC1d:           Ptr(r.IC1d),
		IC3d:           Ptr(r.IC3d),
		IC7d:           Ptr(r.IC7d),
		ICMean:         Ptr(r.ICMean),
		ICStd:          Ptr(r.ICStd),
		ICIR:           Ptr(r.ICIR),
		Accuracy:       Ptr(r.Classification.Accuracy),
		PrecisionBuy:   Ptr(r.Classification.PrecisionBuy),
		RecallBuy:      Ptr(r.Classification.RecallBuy),
		F1Buy:          Ptr(r.Classification.F1Buy),
		Sharpe:         Ptr(r.Portfolio.Sharpe),
		MaxDrawdown:    Ptr(r.Portfolio.MaxDrawdown),
		TotalReturn:    Ptr(r.Portfolio.TotalReturn),
		WinRate:        Ptr(r.Portfolio.WinRate),
		TotalTrades:    r.Portfolio.TotalTrades,
		AvgHoldingDays: r.Portfolio.AvgHoldingDays,
		Degenerate:     r.Degenerate,
		Notes:          r.Notes,
	}
}

// WriteBacktestReport writes the per-window results as a YAML list.
func WriteBacktestReport(path string, results []BacktestResult) error {
	reports := make([]backtestReport, 0, len(results))
	for _, r := range results {
		reports = append(reports, newBacktestReport(r))
	}

	data, err := yaml.Marshal(reports)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest results to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest results to file: %w", err)
	}

	return nil
}
