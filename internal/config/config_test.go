package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) TestDefaults() {
	cfg, err := Default()
	suite.Require().NoError(err)
	suite.Require().NoError(cfg.Validate())

	suite.Equal(0.03, cfg.Labels.Threshold(types.Horizon1d))
	suite.Equal(0.05, cfg.Labels.Threshold(types.Horizon3d))
	suite.Equal(0.07, cfg.Labels.Threshold(types.Horizon7d))
	suite.Equal(0.10, cfg.Labels.Threshold(types.Horizon14d))
	suite.Equal(7, cfg.Labels.ShortVolatility)
	suite.Equal(30, cfg.Labels.LongVolatility)

	suite.Equal(2.0, cfg.News.Weight(1))
	suite.Equal(1.0, cfg.News.Weight(2))
	suite.Equal(0.4, cfg.News.Weight(3))
	suite.Equal(0.4, cfg.News.Weight(9))

	suite.Equal(FusionModeRules, cfg.Fusion.Mode)
	suite.Equal(1.5, cfg.Fusion.AdoptionTakeProfit)
	suite.True(cfg.Fusion.Policy("small").LowConviction)
	suite.False(cfg.Fusion.Policy("large").LowConviction)
	suite.False(cfg.Fusion.Policy("unknown").LowConviction)

	asset, ok := cfg.Assets.Asset(" btc ")
	suite.True(ok)
	suite.Equal("bitcoin", asset)
	suite.Equal("large", cfg.Assets.Tier("bitcoin"))
	suite.Equal("small", cfg.Assets.Tier("pepe"))
}

func (suite *ConfigTestSuite) TestParseOverridesDefaults() {
	cfg, err := Parse([]byte(`
version: 1.2.0
labels:
  threshold_1d: 0.02
fusion:
  mode: weighted
  price_weight: 0.7
  news_weight: 0.3
assets:
  universes:
    majors: [bitcoin, ethereum]
training:
  universe: majors
`))
	suite.Require().NoError(err)
	suite.Equal("1.2.0", cfg.Version)
	suite.Equal(0.02, cfg.Labels.Threshold1d)
	suite.Equal(0.05, cfg.Labels.Threshold3d)
	suite.Equal(FusionModeWeighted, cfg.Fusion.Mode)
	suite.Len(cfg.Universe("majors"), 2)
	suite.Nil(cfg.Universe("all"))
}

func (suite *ConfigTestSuite) TestParseMapsReplaceDefaults() {
	cfg, err := Parse([]byte(`
assets:
  symbols:
    BTC: bitcoin
  tiers:
    bitcoin: mid
news:
  tier_weights:
    1: 3.0
fusion:
  tier_policies:
    mid:
      low_conviction: true
      disagreement_threshold: 0.4
`))
	suite.Require().NoError(err)

	suite.Equal(map[string]string{"BTC": "bitcoin"}, cfg.Assets.Symbols)
	suite.Equal(map[string]string{"bitcoin": "mid"}, cfg.Assets.Tiers)
	suite.Equal("small", cfg.Assets.Tier("ethereum"))

	suite.Equal(map[int]float64{1: 3.0}, cfg.News.TierWeights)

	suite.Len(cfg.Fusion.TierPolicies, 1)
	suite.Equal(TierPolicy{LowConviction: true, DisagreementThreshold: 0.4}, cfg.Fusion.Policy("mid"))
	suite.False(cfg.Fusion.Policy("small").LowConviction)

	// untouched maps keep their defaults
	suite.Equal(1, cfg.News.SourceTiers["coindesk"])
}

func (suite *ConfigTestSuite) TestParseEmptyDocumentKeepsDefaults() {
	cfg, err := Parse(nil)
	suite.Require().NoError(err)
	suite.Len(cfg.Assets.Symbols, 10)
	suite.Len(cfg.Fusion.TierPolicies, 3)
}

func (suite *ConfigTestSuite) TestValidationFailures() {
	tests := []struct {
		name string
		yaml string
		code errors.ErrorCode
	}{
		{
			name: "weights do not sum to one",
			yaml: "fusion:\n  price_weight: 0.7\n  news_weight: 0.7\n",
			code: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "min multiplier above max",
			yaml: "fusion:\n  min_multiplier: 2\n  max_multiplier: 1.5\n",
			code: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "positive veto threshold",
			yaml: "fusion:\n  regulatory_threshold: 0.2\n",
			code: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "thresholds decrease with horizon",
			yaml: "labels:\n  threshold_1d: 0.2\n",
			code: errors.ErrCodeInvalidThreshold,
		},
		{
			name: "unknown fusion mode",
			yaml: "fusion:\n  mode: average\n",
			code: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "bad version",
			yaml: "version: latest\n",
			code: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "unknown universe",
			yaml: "training:\n  universe: defi\n",
			code: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "window not chronological",
			yaml: "training:\n  windows:\n    - train_from: 2024-02-01T00:00:00Z\n      train_to: 2024-01-01T00:00:00Z\n      validation_from: 2024-03-01T00:00:00Z\n      validation_to: 2024-04-01T00:00:00Z\n",
			code: errors.ErrCodeInvalidWindow,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := Parse([]byte(tc.yaml))
			suite.Error(err)
			suite.Equal(tc.code, errors.GetCode(err))
		})
	}
}

func (suite *ConfigTestSuite) TestLoad() {
	path := filepath.Join(suite.T().TempDir(), "config.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte("store:\n  path: ':memory:'\n"), 0644))

	cfg, err := Load(path)
	suite.Require().NoError(err)
	suite.Equal(":memory:", cfg.Store.Path)

	_, err = Load(filepath.Join(suite.T().TempDir(), "missing.yaml"))
	suite.Error(err)
	suite.Equal(errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
}

func (suite *ConfigTestSuite) TestFingerprint() {
	a, err := Default()
	suite.Require().NoError(err)
	b, err := Default()
	suite.Require().NoError(err)

	suite.Equal(a.Labels.Fingerprint(), b.Labels.Fingerprint())

	b.Labels.Threshold3d = 0.06
	suite.NotEqual(a.Labels.Fingerprint(), b.Labels.Fingerprint())
}

func (suite *ConfigTestSuite) TestGenerateSchemaJSON() {
	cfg, err := Default()
	suite.Require().NoError(err)

	schema, err := cfg.GenerateSchemaJSON()
	suite.Require().NoError(err)
	suite.Contains(schema, "argo-fusion-config")
	suite.Contains(schema, "threshold_1d")
	suite.Contains(schema, "tier_policies")
}
