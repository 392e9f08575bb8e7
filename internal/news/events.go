package news

import (
	"regexp"
	"strings"
)

// EventType is the coarse kind of news event an article reports.
type EventType string

const (
	EventRegulation          EventType = "REGULATION"
	EventHackExploit         EventType = "HACK_EXPLOIT"
	EventAdoptionPartnership EventType = "ADOPTION_PARTNERSHIP"
	EventMacro               EventType = "MACRO"
	EventWhaleMovement       EventType = "WHALE_MOVEMENT"
	EventETFInstitutional    EventType = "ETF_INSTITUTIONAL"
	EventLiquidation         EventType = "LIQUIDATION"
	EventOther               EventType = "OTHER"
)

var categoryEvents = map[string]EventType{
	"REGULATION":         EventRegulation,
	"SECURITY INCIDENTS": EventHackExploit,
	"MACROECONOMICS":     EventMacro,
	"FIAT":               EventMacro,
}

type titleRule struct {
	event   EventType
	pattern *regexp.Regexp
}

// titleRules are tried in order; the first match wins.
var titleRules = []titleRule{
	{EventRegulation, regexp.MustCompile(`(?i)\b(sec|cftc|ban|law|regulat|legislat|comply|compliance|sanction|lawsuit|court|bill|act)\b`)},
	{EventHackExploit, regexp.MustCompile(`(?i)\b(hack|exploit|breach|stolen|theft|vulnerab|attack|drainer|rug\s?pull|scam|phishing)\b`)},
	{EventAdoptionPartnership, regexp.MustCompile(`(?i)\b(partner|integrat|adopt|launch|list|acqui|merge|collaborat|ecosystem|integrates)\b`)},
	{EventETFInstitutional, regexp.MustCompile(`(?i)\b(etf|institutional|blackrock|fidelity|grayscale|vanguard|treasury|reserve|sovereign)\b`)},
	{EventWhaleMovement, regexp.MustCompile(`(?i)\b(whale|transfer|moved?\s+\d|billion|large\s+transaction|on-?chain|wallet)\b`)},
	{EventLiquidation, regexp.MustCompile(`(?i)\b(liquidat|forced\s+clos|margin\s+call|short\s+squeeze|long\s+squeeze)\b`)},
	{EventMacro, regexp.MustCompile(`(?i)\b(fed|fomc|cpi|inflation|rate\s+cut|rate\s+hike|gdp|recession|dollar|treasury\s+yield)\b`)},
}

// ParseCategories splits a pipe-delimited category list into upper-case tokens.
func ParseCategories(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, "|")
	tokens := make([]string, 0, len(parts))

	for _, p := range parts {
		if t := strings.ToUpper(strings.TrimSpace(p)); t != "" {
			tokens = append(tokens, t)
		}
	}

	return tokens
}

// ClassifyEvent assigns an event type from the article categories first, then from
// keywords in the title. Unmatched articles are OTHER.
func ClassifyEvent(categories []string, title string) EventType {
	for _, c := range categories {
		if event, ok := categoryEvents[c]; ok {
			return event
		}
	}

	if title != "" {
		for _, rule := range titleRules {
			if rule.pattern.MatchString(title) {
				return rule.event
			}
		}
	}

	return EventOther
}
