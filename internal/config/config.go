package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the versioned configuration injected into every component.
type Config struct {
	Version    string            `yaml:"version" json:"version" default:"1.0.0" validate:"required,semver" jsonschema:"title=Version,description=Semantic version of this configuration"`
	Log        LogConfig         `yaml:"log" json:"log"`
	Store      StoreConfig       `yaml:"store" json:"store"`
	Prices     PriceSourceConfig `yaml:"prices" json:"prices"`
	Labels     LabelConfig       `yaml:"labels" json:"labels"`
	Assets     AssetConfig       `yaml:"assets" json:"assets"`
	Sources    []SourceConfig    `yaml:"sources" json:"sources" validate:"dive"`
	News       NewsConfig        `yaml:"news" json:"news"`
	Training   TrainingConfig    `yaml:"training" json:"training"`
	Evaluation EvaluationConfig  `yaml:"evaluation" json:"evaluation"`
	Inference  InferenceConfig   `yaml:"inference" json:"inference"`
	Fusion     FusionConfig      `yaml:"fusion" json:"fusion"`
	Metrics    MetricsConfig     `yaml:"metrics" json:"metrics"`
	Kafka      KafkaConfig       `yaml:"kafka" json:"kafka"`
	Redis      RedisConfig       `yaml:"redis" json:"redis"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level" default:"info" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// StoreConfig locates the DuckDB database and the raw price input.
type StoreConfig struct {
	Path           string `yaml:"path" json:"path" default:"argo-fusion.duckdb" validate:"required" jsonschema:"description=DuckDB database file or :memory:"`
	PricesPath     string `yaml:"prices_path" json:"prices_path" jsonschema:"description=Parquet file of daily closes with asset/time/close/volume columns"`
	ArticlesPath   string `yaml:"articles_path" json:"articles_path" jsonschema:"description=Parquet file of scored news articles"`
	MatrixRetained int    `yaml:"matrix_retained" json:"matrix_retained" default:"3" validate:"min=1" jsonschema:"description=Number of feature matrix versions kept after a swap"`
	ExportDir      string `yaml:"export_dir" json:"export_dir" default:"exports"`
}

// PriceSourceConfig selects the exchange daily closes are downloaded from. Upstream
// symbols come from assets.symbols.
type PriceSourceConfig struct {
	Provider      string `yaml:"provider" json:"provider" default:"binance" validate:"oneof=binance polygon" jsonschema:"enum=binance,enum=polygon"`
	BinanceQuote  string `yaml:"binance_quote" json:"binance_quote" default:"USDT" validate:"required" jsonschema:"description=Quote asset appended to symbols for Binance pairs"`
	PolygonAPIKey string `yaml:"polygon_api_key" json:"polygon_api_key" jsonschema:"description=Polygon API key; the POLYGON_API_KEY environment variable overrides it"`
}

// LabelConfig holds the symmetric classification thresholds per horizon and the volatility windows.
type LabelConfig struct {
	Threshold1d     float64 `yaml:"threshold_1d" json:"threshold_1d" default:"0.03" validate:"gt=0,lt=1"`
	Threshold3d     float64 `yaml:"threshold_3d" json:"threshold_3d" default:"0.05" validate:"gt=0,lt=1"`
	Threshold7d     float64 `yaml:"threshold_7d" json:"threshold_7d" default:"0.07" validate:"gt=0,lt=1"`
	Threshold14d    float64 `yaml:"threshold_14d" json:"threshold_14d" default:"0.10" validate:"gt=0,lt=1"`
	ShortVolatility int     `yaml:"short_volatility_window" json:"short_volatility_window" default:"7" validate:"min=2"`
	LongVolatility  int     `yaml:"long_volatility_window" json:"long_volatility_window" default:"30" validate:"min=2"`
}

// Threshold returns the symmetric threshold for h.
func (c LabelConfig) Threshold(h types.Horizon) float64 {
	switch h {
	case types.Horizon1d:
		return c.Threshold1d
	case types.Horizon3d:
		return c.Threshold3d
	case types.Horizon7d:
		return c.Threshold7d
	case types.Horizon14d:
		return c.Threshold14d
	default:
		return math.NaN()
	}
}

// Fingerprint identifies the label definition. A model trained against one fingerprint must
// not be served against another.
func (c LabelConfig) Fingerprint() string {
	var b strings.Builder
	for _, h := range types.Horizons {
		fmt.Fprintf(&b, "%s=%.6f;", h, c.Threshold(h))
	}

	fmt.Fprintf(&b, "vol=%d,%d", c.ShortVolatility, c.LongVolatility)
	sum := sha256.Sum256([]byte(b.String()))

	return hex.EncodeToString(sum[:8])
}

// AssetConfig maps upstream symbols and categories to canonical asset slugs and tiers.
type AssetConfig struct {
	Symbols     map[string]string   `yaml:"symbols" json:"symbols" default:"{\"BTC\":\"bitcoin\",\"ETH\":\"ethereum\",\"SOL\":\"solana\",\"XRP\":\"ripple\",\"ADA\":\"cardano\",\"DOGE\":\"dogecoin\",\"BNB\":\"binancecoin\",\"AVAX\":\"avalanche-2\",\"DOT\":\"polkadot\",\"LINK\":\"chainlink\"}"`
	MarketProxy string              `yaml:"market_proxy" json:"market_proxy" default:"bitcoin" validate:"required"`
	Tiers       map[string]string   `yaml:"tiers" json:"tiers" default:"{\"bitcoin\":\"large\",\"ethereum\":\"large\"}"`
	DefaultTier string              `yaml:"default_tier" json:"default_tier" default:"small" validate:"required"`
	Universes   map[string][]string `yaml:"universes" json:"universes" jsonschema:"description=Named asset lists usable as training universes; 'all' is implicit"`
}

// Tier returns the configured tier of asset.
func (c AssetConfig) Tier(asset string) string {
	if tier, ok := c.Tiers[asset]; ok {
		return tier
	}

	return c.DefaultTier
}

// Asset resolves an upstream symbol or category to its asset slug.
func (c AssetConfig) Asset(symbol string) (string, bool) {
	asset, ok := c.Symbols[strings.ToUpper(strings.TrimSpace(symbol))]

	return asset, ok
}

// SourceConfig describes one upstream feature table stored as parquet.
type SourceConfig struct {
	Name        string   `yaml:"name" json:"name" validate:"required"`
	Path        string   `yaml:"path" json:"path" validate:"required"`
	AssetScoped bool     `yaml:"asset_scoped" json:"asset_scoped"`
	Columns     []string `yaml:"columns" json:"columns" validate:"required,min=1"`
}

// NewsConfig controls the daily news signal aggregation.
type NewsConfig struct {
	SourceTiers        map[string]int    `yaml:"source_tiers" json:"source_tiers" default:"{\"coindesk\":1,\"cointelegraph\":1,\"decrypt\":1,\"seekingalpha\":1,\"theblock\":1,\"bloombergcrypto\":1,\"reuters\":1,\"financialtimes\":1,\"wallstreetjournal\":1,\"forbescrypto\":1,\"bitcoinworld\":3,\"coinotag\":3,\"timestabloid\":3,\"cointurknews\":3,\"bitcoinsistemi\":3,\"coinpaper\":3}" jsonschema:"description=Source tier by normalised name (lower case without spaces)"`
	TierWeights        map[int]float64   `yaml:"tier_weights" json:"tier_weights" default:"{\"1\":2.0,\"2\":1.0,\"3\":0.4}"`
	DefaultTier        int               `yaml:"default_tier" json:"default_tier" default:"2" validate:"min=1,max=3"`
	BaselineDays       int               `yaml:"baseline_days" json:"baseline_days" default:"30" validate:"min=2"`
	MinVolumeStd       float64           `yaml:"min_volume_std" json:"min_volume_std" default:"0.01" validate:"gt=0"`
	IncludeMarketProxy bool              `yaml:"include_market_proxy" json:"include_market_proxy" default:"true"`
	TableName          string            `yaml:"table_name" json:"table_name" default:"news_signals" validate:"required"`
	CategoryAssets     map[string]string `yaml:"category_assets" json:"category_assets" jsonschema:"description=Extra category to asset mappings merged over assets.symbols"`
}

// Weight returns the weight of a source tier.
func (c NewsConfig) Weight(tier int) float64 {
	if w, ok := c.TierWeights[tier]; ok {
		return w
	}

	return c.TierWeights[c.DefaultTier]
}

// WalkForwardConfig generates rolling windows when no explicit windows are configured.
type WalkForwardConfig struct {
	TrainDays      int `yaml:"train_days" json:"train_days" default:"365" validate:"min=1"`
	ValidationDays int `yaml:"validation_days" json:"validation_days" default:"30" validate:"min=1"`
	EmbargoDays    int `yaml:"embargo_days" json:"embargo_days" default:"0" validate:"min=0"`
	Windows        int `yaml:"windows" json:"windows" default:"4" validate:"min=1"`
}

// WindowConfig is an explicit train/validation pair.
type WindowConfig struct {
	TrainFrom      time.Time `yaml:"train_from" json:"train_from" validate:"required"`
	TrainTo        time.Time `yaml:"train_to" json:"train_to" validate:"required"`
	ValidationFrom time.Time `yaml:"validation_from" json:"validation_from" validate:"required"`
	ValidationTo   time.Time `yaml:"validation_to" json:"validation_to" validate:"required"`
}

type TrainingConfig struct {
	Name         string            `yaml:"name" json:"name" default:"softmax-news" validate:"required"`
	Family       string            `yaml:"family" json:"family" default:"softmax" validate:"oneof=softmax prior"`
	Target       string            `yaml:"target" json:"target" default:"3d" validate:"oneof=1d 3d 7d 14d"`
	Features     []string          `yaml:"features" json:"features" jsonschema:"description=Ordered feature columns; empty uses every matrix column"`
	Universe     string            `yaml:"universe" json:"universe" default:"all" validate:"required"`
	LearningRate float64           `yaml:"learning_rate" json:"learning_rate" default:"0.1" validate:"gt=0"`
	Epochs       int               `yaml:"epochs" json:"epochs" default:"300" validate:"min=1"`
	L2           float64           `yaml:"l2" json:"l2" default:"0.001" validate:"min=0"`
	MinTrainRows int               `yaml:"min_train_rows" json:"min_train_rows" default:"50" validate:"min=1"`
	Parallelism  int               `yaml:"parallelism" json:"parallelism" default:"4" validate:"min=1"`
	ArtifactDir  string            `yaml:"artifact_dir" json:"artifact_dir" default:"artifacts" validate:"required"`
	ReportPath   string            `yaml:"report_path" json:"report_path"`
	WalkForward  WalkForwardConfig `yaml:"walk_forward" json:"walk_forward"`
	Windows      []WindowConfig    `yaml:"windows" json:"windows" validate:"dive"`
}

// TargetHorizon parses Target.
func (c TrainingConfig) TargetHorizon() (types.Horizon, error) {
	return types.ParseHorizon(c.Target)
}

type EvaluationConfig struct {
	BasketFraction    float64 `yaml:"basket_fraction" json:"basket_fraction" default:"0.1" validate:"gt=0,lte=0.5"`
	MinAssetsPerDay   int     `yaml:"min_assets_per_day" json:"min_assets_per_day" default:"10" validate:"min=2"`
	MinICObservations int     `yaml:"min_ic_observations" json:"min_ic_observations" default:"5" validate:"min=3"`
	PeriodsPerYear    float64 `yaml:"periods_per_year" json:"periods_per_year" default:"365" validate:"gt=0"`
}

type InferenceConfig struct {
	MinConfidence     float64 `yaml:"min_confidence" json:"min_confidence" default:"0.4" validate:"gte=0,lt=1"`
	TopK              int     `yaml:"top_k" json:"top_k" default:"5" validate:"min=0"`
	MaxFeatureAgeDays int     `yaml:"max_feature_age_days" json:"max_feature_age_days" default:"1" validate:"min=0" jsonschema:"description=Feature rows older than this many days before the inference day produce a no-data signal"`
}

// FusionMode selects how the price-forecast score and the news signal are combined.
type FusionMode string

const (
	FusionModeRules    FusionMode = "rules"
	FusionModeWeighted FusionMode = "weighted"
	FusionModeComposed FusionMode = "composed"
)

// TierPolicy is the fusion behaviour for one asset tier.
type TierPolicy struct {
	LowConviction         bool    `yaml:"low_conviction" json:"low_conviction"`
	DisagreementThreshold float64 `yaml:"disagreement_threshold" json:"disagreement_threshold" validate:"gte=0,lte=2"`
}

type FusionConfig struct {
	Mode                   FusionMode            `yaml:"mode" json:"mode" default:"rules" validate:"oneof=rules weighted composed" jsonschema:"enum=rules,enum=weighted,enum=composed"`
	PriceWeight            float64               `yaml:"price_weight" json:"price_weight" default:"0.6" validate:"gte=0,lte=1"`
	NewsWeight             float64               `yaml:"news_weight" json:"news_weight" default:"0.4" validate:"gte=0,lte=1"`
	RegulatoryThreshold    float64               `yaml:"regulatory_threshold" json:"regulatory_threshold" default:"-0.3" validate:"lt=0,gte=-1"`
	SecurityThreshold      float64               `yaml:"security_threshold" json:"security_threshold" default:"-0.2" validate:"lt=0,gte=-1"`
	LeverageK              float64               `yaml:"leverage_k" json:"leverage_k" default:"0.5" validate:"gte=0"`
	MinMultiplier          float64               `yaml:"min_multiplier" json:"min_multiplier" default:"0.5" validate:"gt=0"`
	MaxMultiplier          float64               `yaml:"max_multiplier" json:"max_multiplier" default:"1.5" validate:"gt=0"`
	AdoptionTakeProfit     float64               `yaml:"adoption_take_profit" json:"adoption_take_profit" default:"1.5" validate:"gte=1"`
	VolumeAnomalyThreshold float64               `yaml:"volume_anomaly_threshold" json:"volume_anomaly_threshold" default:"3" validate:"gt=0"`
	TierPolicies           map[string]TierPolicy `yaml:"tier_policies" json:"tier_policies" default:"{\"large\":{\"low_conviction\":false,\"disagreement_threshold\":0},\"mid\":{\"low_conviction\":true,\"disagreement_threshold\":0.5},\"small\":{\"low_conviction\":true,\"disagreement_threshold\":0.3}}" validate:"dive"`
}

// Policy returns the tier policy, or a high-conviction policy for unknown tiers.
func (c FusionConfig) Policy(tier string) TierPolicy {
	if p, ok := c.TierPolicies[tier]; ok {
		return p
	}

	return TierPolicy{LowConviction: false, DisagreementThreshold: 0}
}

type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" json:"textfile_path" jsonschema:"description=Prometheus textfile written after each job; empty disables"`
}

type KafkaConfig struct {
	Brokers        []string `yaml:"brokers" json:"brokers"`
	SignalTopic    string   `yaml:"signal_topic" json:"signal_topic" default:"argo.signals"`
	DecisionTopic  string   `yaml:"decision_topic" json:"decision_topic" default:"argo.decisions"`
	BatchTimeoutMs int      `yaml:"batch_timeout_ms" json:"batch_timeout_ms" default:"50" validate:"min=1"`
}

// Enabled reports whether publishing is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type RedisConfig struct {
	Addr       string `yaml:"addr" json:"addr" jsonschema:"description=Redis address for the cross-process activation lock; empty uses an in-process lock"`
	Password   string `yaml:"password" json:"password"`
	DB         int    `yaml:"db" json:"db"`
	LockKey    string `yaml:"lock_key" json:"lock_key" default:"argo-fusion:registry:activate"`
	LockTTLSec int    `yaml:"lock_ttl_sec" json:"lock_ttl_sec" default:"30" validate:"min=1"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to apply defaults", err)
	}

	return cfg, nil
}

// Load reads, defaults and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
	}

	return Parse(data)
}

// Parse decodes YAML bytes over the defaults and validates the result. A map given in
// the document replaces its default map as a whole.
func Parse(data []byte) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if doc.Kind != 0 {
		resetMaps(&doc, reflect.ValueOf(cfg))

		if err := doc.Decode(cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resetMaps clears every map field the document sets. yaml.v3 decodes into an existing
// map by adding keys, which would leave default entries behind.
func resetMaps(node *yaml.Node, v reflect.Value) {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) > 0 {
			resetMaps(node.Content[0], v)
		}

		return
	}

	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}

		v = v.Elem()
	}

	if node.Kind != yaml.MappingNode || v.Kind() != reflect.Struct {
		return
	}

	fields := make(map[string]int, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		name, _, _ := strings.Cut(v.Type().Field(i).Tag.Get("yaml"), ",")
		if name == "" {
			name = strings.ToLower(v.Type().Field(i).Name)
		}

		fields[name] = i
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		idx, ok := fields[node.Content[i].Value]
		if !ok {
			continue
		}

		field := v.Field(idx)
		switch field.Kind() {
		case reflect.Map:
			field.Set(reflect.Zero(field.Type()))
		case reflect.Struct, reflect.Pointer:
			resetMaps(node.Content[i+1], field)
		}
	}
}

// Validate runs field validation and the cross-field rules.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	l := c.Labels
	if !(l.Threshold1d <= l.Threshold3d && l.Threshold3d <= l.Threshold7d && l.Threshold7d <= l.Threshold14d) {
		return errors.New(errors.ErrCodeInvalidThreshold, "label thresholds must not decrease with horizon")
	}

	if l.ShortVolatility >= l.LongVolatility {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "short volatility window %d must be below long window %d", l.ShortVolatility, l.LongVolatility)
	}

	f := c.Fusion
	if math.Abs(f.PriceWeight+f.NewsWeight-1) > 1e-9 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "fusion weights must sum to 1, got %.4f", f.PriceWeight+f.NewsWeight)
	}

	if f.MinMultiplier > f.MaxMultiplier {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "min_multiplier %.2f exceeds max_multiplier %.2f", f.MinMultiplier, f.MaxMultiplier)
	}

	for i, w := range c.Training.Windows {
		if !w.TrainFrom.Before(w.TrainTo) || !w.TrainTo.Before(w.ValidationFrom) || w.ValidationTo.Before(w.ValidationFrom) {
			return errors.Newf(errors.ErrCodeInvalidWindow, "training window %d is not chronological", i)
		}
	}

	if _, err := c.Training.TargetHorizon(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid training target", err)
	}

	if c.Training.Universe != "all" {
		if _, ok := c.Assets.Universes[c.Training.Universe]; !ok {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown universe %q", c.Training.Universe)
		}
	}

	return nil
}

// Universe returns the asset set of the named universe; nil means every asset.
func (c *Config) Universe(name string) map[string]struct{} {
	assets, ok := c.Assets.Universes[name]
	if name == "all" || !ok {
		return nil
	}

	set := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		set[a] = struct{}{}
	}

	return set
}

// SortedTiers returns the configured tier names in a stable order.
func (c *Config) SortedTiers() []string {
	tiers := make([]string, 0, len(c.Fusion.TierPolicies))
	for t := range c.Fusion.TierPolicies {
		tiers = append(tiers, t)
	}

	sort.Strings(tiers)

	return tiers
}

// GenerateSchema generates a JSON schema for Config.
func (c *Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(FusionMode("")) {
				return &jsonschema.Schema{
					Type: "string",
					Enum: []any{string(FusionModeRules), string(FusionModeWeighted), string(FusionModeComposed)},
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "argo-fusion-config"
	schema.Description = "Configuration schema for the argo-fusion batch jobs"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for Config.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
