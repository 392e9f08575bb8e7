package fusion

import (
	"math"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
)

// Input is everything the fusion layer knows about one asset on one day.
type Input struct {
	Asset string
	Time  time.Time
	Tier  string
	// PriceScore is the external price-forecast score in [-1, 1].
	PriceScore float64
	// Signal is the inference output; its Score is the news score.
	Signal      types.Signal
	Sentiment1d optional.Option[float64]
	Sentiment3d optional.Option[float64]
	Regulatory  bool
	Security    bool
	Adoption    bool
	// VolumeZ is the news volume anomaly z-score.
	VolumeZ optional.Option[float64]
}

// Reason explains why a decision does not trade, or is empty.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNoDirection   Reason = "no_direction"
	ReasonRegulatory    Reason = "regulatory_veto"
	ReasonSecurity      Reason = "security_veto"
	ReasonDisagreement  Reason = "direction_disagreement"
	ReasonVolumeCap     Reason = "volume_anomaly_cap"
	ReasonAdoptionBoost Reason = "adoption_take_profit"
)

// Decision is the final per-asset output. Direction HOLD means no trade, and its
// LeverageMultiplier is 0.
type Decision struct {
	Asset                string            `json:"asset"`
	Time                 time.Time         `json:"time"`
	Mode                 config.FusionMode `json:"mode"`
	Direction            types.Direction   `json:"direction"`
	LeverageMultiplier   float64           `json:"leverage_multiplier"`
	TakeProfitAdjustment float64           `json:"take_profit_adjustment"`
	Veto                 bool              `json:"veto"`
	Combined             float64           `json:"combined"`
	Reasons              []Reason          `json:"reasons,omitempty"`
}

// Fuser applies the configured fusion policy. It holds no state between calls.
type Fuser struct {
	cfg config.FusionConfig
}

func New(cfg config.FusionConfig) (*Fuser, error) {
	switch cfg.Mode {
	case config.FusionModeRules, config.FusionModeWeighted, config.FusionModeComposed:
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidFusionMode, "unknown fusion mode %q", cfg.Mode)
	}

	if cfg.MinMultiplier > cfg.MaxMultiplier {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "min multiplier %.2f exceeds max %.2f", cfg.MinMultiplier, cfg.MaxMultiplier)
	}

	return &Fuser{cfg: cfg}, nil
}

// Decide fuses one input into a decision.
func (f *Fuser) Decide(in Input) (Decision, error) {
	if err := validate(in); err != nil {
		return Decision{}, err
	}

	newsScore := in.Signal.Score
	if in.Signal.NoData {
		newsScore = 0
	}

	d := Decision{
		Asset:                in.Asset,
		Time:                 types.Day(in.Time),
		Mode:                 f.cfg.Mode,
		TakeProfitAdjustment: 1,
		Combined:             f.cfg.PriceWeight*in.PriceScore + f.cfg.NewsWeight*newsScore,
	}

	switch f.cfg.Mode {
	case config.FusionModeRules:
		d.Direction = sign(in.PriceScore)
		d.LeverageMultiplier = f.sentimentMultiplier(in)
	case config.FusionModeWeighted:
		d.Direction = sign(d.Combined)
		d.LeverageMultiplier = f.clamp(f.cfg.MinMultiplier + (f.cfg.MaxMultiplier-f.cfg.MinMultiplier)*math.Abs(d.Combined))
	case config.FusionModeComposed:
		d.Direction = sign(d.Combined)
		d.LeverageMultiplier = f.sentimentMultiplier(in)
	}

	if d.Direction == types.DirectionHold {
		return noTrade(d, ReasonNoDirection), nil
	}

	if d.Direction == types.DirectionBuy {
		if reason := f.veto(in); reason != ReasonNone {
			d.Veto = true

			return noTrade(d, reason), nil
		}
	}

	if f.cfg.Mode != config.FusionModeWeighted && f.disagrees(in.Tier, in.PriceScore, newsScore) {
		return noTrade(d, ReasonDisagreement), nil
	}

	if in.VolumeZ.IsSome() && math.Abs(in.VolumeZ.Unwrap()) > f.cfg.VolumeAnomalyThreshold && d.LeverageMultiplier > 1 {
		d.LeverageMultiplier = f.clamp(1)
		d.Reasons = append(d.Reasons, ReasonVolumeCap)
	}

	if in.Adoption && d.Direction == types.DirectionBuy {
		d.TakeProfitAdjustment = f.cfg.AdoptionTakeProfit
		d.Reasons = append(d.Reasons, ReasonAdoptionBoost)
	}

	return d, nil
}

// noTrade turns d into a HOLD decision. A decision without a position carries no
// leverage.
func noTrade(d Decision, reason Reason) Decision {
	d.Direction = types.DirectionHold
	d.LeverageMultiplier = 0
	d.Reasons = append(d.Reasons, reason)

	return d
}

// veto returns the rule that blocks a long entry, if any.
func (f *Fuser) veto(in Input) Reason {
	if in.Regulatory && below(in.Sentiment3d, f.cfg.RegulatoryThreshold) {
		return ReasonRegulatory
	}

	if in.Security && below(in.Sentiment1d, f.cfg.SecurityThreshold) {
		return ReasonSecurity
	}

	return ReasonNone
}

// disagrees applies the direction-bias rule of low-conviction tiers.
func (f *Fuser) disagrees(tier string, price, news float64) bool {
	policy := f.cfg.Policy(tier)
	if !policy.LowConviction {
		return false
	}

	p, n := sign(price), sign(news)
	if p == types.DirectionHold || n == types.DirectionHold || p == n {
		return false
	}

	return math.Abs(price-news) > policy.DisagreementThreshold
}

// sentimentMultiplier is clamp(1 + sentiment_3d·k). Missing sentiment counts as neutral.
func (f *Fuser) sentimentMultiplier(in Input) float64 {
	s := 0.0
	if in.Sentiment3d.IsSome() {
		s = in.Sentiment3d.Unwrap()
	}

	return f.clamp(1 + s*f.cfg.LeverageK)
}

func (f *Fuser) clamp(v float64) float64 {
	return math.Min(math.Max(v, f.cfg.MinMultiplier), f.cfg.MaxMultiplier)
}

func below(v optional.Option[float64], threshold float64) bool {
	return v.IsSome() && v.Unwrap() < threshold
}

func sign(v float64) types.Direction {
	switch {
	case v > 0:
		return types.DirectionBuy
	case v < 0:
		return types.DirectionSell
	default:
		return types.DirectionHold
	}
}

func validate(in Input) error {
	check := func(name string, v float64) error {
		if math.IsNaN(v) || v < -1 || v > 1 {
			return errors.Newf(errors.ErrCodeInvalidFusionInput, "%s %v for %s is outside [-1, 1]", name, v, in.Asset)
		}

		return nil
	}

	if err := check("price score", in.PriceScore); err != nil {
		return err
	}

	if err := check("signal score", in.Signal.Score); err != nil {
		return err
	}

	for name, s := range map[string]optional.Option[float64]{"sentiment_1d": in.Sentiment1d, "sentiment_3d": in.Sentiment3d} {
		if s.IsSome() {
			if err := check(name, s.Unwrap()); err != nil {
				return err
			}
		}
	}

	if in.VolumeZ.IsSome() && math.IsNaN(in.VolumeZ.Unwrap()) {
		return errors.Newf(errors.ErrCodeInvalidFusionInput, "volume z-score for %s is NaN", in.Asset)
	}

	return nil
}
