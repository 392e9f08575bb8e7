package news

import (
	"strings"

	"github.com/rxtech-lab/argo-fusion/internal/config"
)

// marketCategories are broad categories that count as news about the market proxy when an
// article names no specific asset.
var marketCategories = map[string]struct{}{
	"CRYPTOCURRENCY":         {},
	"MARKET":                 {},
	"TRADING":                {},
	"BUSINESS":               {},
	"MACROECONOMICS":         {},
	"BLOCKCHAIN":             {},
	"EXCHANGE":               {},
	"DIGITAL ASSET TREASURY": {},
	"RESEARCH":               {},
}

// Mapper resolves article categories to assets and sources to credibility tiers.
type Mapper struct {
	symbols      map[string]string
	proxy        string
	includeProxy bool
	sourceTiers  map[string]int
	defaultTier  int
}

func NewMapper(assets config.AssetConfig, cfg config.NewsConfig) *Mapper {
	symbols := make(map[string]string, len(assets.Symbols)+len(cfg.CategoryAssets))
	for k, v := range assets.Symbols {
		symbols[strings.ToUpper(k)] = v
	}

	for k, v := range cfg.CategoryAssets {
		symbols[strings.ToUpper(k)] = v
	}

	tiers := make(map[string]int, len(cfg.SourceTiers))
	for k, v := range cfg.SourceTiers {
		tiers[normalizeSource(k)] = v
	}

	return &Mapper{
		symbols:      symbols,
		proxy:        assets.MarketProxy,
		includeProxy: cfg.IncludeMarketProxy,
		sourceTiers:  tiers,
		defaultTier:  cfg.DefaultTier,
	}
}

// Assets returns the distinct assets named by the categories, in category order.
// An article naming no asset but carrying a broad market category maps to the market
// proxy when that is enabled.
func (m *Mapper) Assets(categories []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)

	for _, c := range categories {
		asset, ok := m.symbols[c]
		if !ok {
			continue
		}

		if _, dup := seen[asset]; dup {
			continue
		}

		seen[asset] = struct{}{}
		out = append(out, asset)
	}

	if len(out) > 0 || !m.includeProxy {
		return out
	}

	for _, c := range categories {
		if _, ok := marketCategories[c]; ok {
			return []string{m.proxy}
		}
	}

	return out
}

// SourceTier returns 1 (premium), 2 or 3 (high-volume, low quality) for a source name.
func (m *Mapper) SourceTier(source string) int {
	if tier, ok := m.sourceTiers[normalizeSource(source)]; ok && tier >= 1 && tier <= 3 {
		return tier
	}

	return m.defaultTier
}

func normalizeSource(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}
