package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"airport-capacity-be/pkg/store"
)

// Normalizer maps a raw entity mention to its canonical form. Normalizers
// must be idempotent: normalizing an already-canonical value is a no-op.
type Normalizer func(string) string

// EntityDefinition is one registry entry. Patterns are tried in order; the
// first match wins and later patterns are skipped.
type EntityDefinition struct {
	Name      string
	Type      string
	Patterns  []*regexp.Regexp
	Normalize Normalizer
	Learned   bool
}

func identity(v string) string { return v }

// stripPrefix removes a leading facility word so normalizers stay idempotent
// when the LLM hands back an already-canonical value.
func stripPrefix(v string, words ...string) string {
	v = strings.TrimSpace(v)
	lower := strings.ToLower(v)
	for _, w := range words {
		if strings.HasPrefix(lower, w+" ") {
			return strings.TrimSpace(v[len(w)+1:])
		}
	}
	return v
}

var airlineNames = map[string]string{
	"ba":              "British Airways",
	"british airways": "British Airways",
	"lh":              "Lufthansa",
	"lufthansa":       "Lufthansa",
	"af":              "Air France",
	"air france":      "Air France",
	"kl":              "KLM",
	"klm":             "KLM",
	"ek":              "Emirates",
	"emirates":        "Emirates",
	"fr":              "Ryanair",
	"ryanair":         "Ryanair",
	"u2":              "easyJet",
	"easyjet":         "easyJet",
}

var monthNumbers = map[string]string{
	"january": "01", "february": "02", "march": "03", "april": "04",
	"may": "05", "june": "06", "july": "07", "august": "08",
	"september": "09", "october": "10", "november": "11", "december": "12",
}

func builtinEntityDefinitions() []EntityDefinition {
	return []EntityDefinition{
		{
			Name: "terminal",
			Type: store.EntityTerminal,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bterminal\s+(\d+)\b`),
				regexp.MustCompile(`(?i)\bt(\d+)\b`),
			},
			Normalize: func(v string) string { return "Terminal " + stripPrefix(v, "terminal") },
		},
		{
			Name: "stand",
			Type: store.EntityStand,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bstand\s+([a-z]?\d+[a-z]?)\b`),
				regexp.MustCompile(`(?i)\bgate\s+([a-z]?\d+[a-z]?)\b`),
			},
			Normalize: func(v string) string { return "Stand " + strings.ToUpper(stripPrefix(v, "stand", "gate")) },
		},
		{
			Name: "pier",
			Type: store.EntityPier,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\bpier\s+([a-z]\b|\d+)`),
				regexp.MustCompile(`(?i)\bconcourse\s+([a-z])\b`),
			},
			Normalize: func(v string) string { return "Pier " + strings.ToUpper(stripPrefix(v, "pier", "concourse")) },
		},
		{
			Name: "time_period",
			Type: store.EntityTimePeriod,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b((?:last|next|past|previous)\s+(?:\d+\s+)?(?:hours?|days?|weeks?|months?|years?))\b`),
				regexp.MustCompile(`(?i)\b(?:today|yesterday|tomorrow|this (?:week|month|year)|peak hours?|morning|afternoon|evening|overnight)\b`),
			},
			Normalize: func(v string) string { return strings.ToLower(strings.TrimSpace(v)) },
		},
		{
			Name: "date",
			Type: store.EntityDate,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`),
				regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`),
				regexp.MustCompile(`(?i)\b((?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4})\b`),
			},
			Normalize: normalizeDate,
		},
		{
			Name: "capacity_metric",
			Type: store.EntityCapacityMetric,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(hourly capacity|daily capacity|peak capacity|utili[sz]ation|movements?|turnaround time)\b`),
			},
			Normalize: func(v string) string {
				v = strings.ToLower(strings.TrimSpace(v))
				return strings.ReplaceAll(v, "utilisation", "utilization")
			},
		},
		{
			Name: "maintenance_type",
			Type: store.EntityMaintenanceType,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(routine|preventive|corrective|emergency|scheduled|unscheduled)\b(?:\s+maintenance)?`),
			},
			Normalize: func(v string) string { return strings.ToLower(strings.TrimSpace(v)) },
		},
		{
			Name: "aircraft_type",
			Type: store.EntityAircraftType,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(wide-?body|narrow-?body|regional jet)\b`),
				regexp.MustCompile(`(?i)\b(a3\d{2}(?:-\d{3})?|b?7\d7(?:-\d+)?)\b`),
			},
			Normalize: normalizeAircraftType,
		},
		{
			Name: "airline",
			Type: store.EntityAirline,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(british airways|lufthansa|air france|klm|emirates|ryanair|easyjet)\b`),
				regexp.MustCompile(`\b(BA|LH|AF|KL|EK|FR|U2)\b`),
			},
			Normalize: normalizeAirline,
		},
	}
}

func normalizeAirline(v string) string {
	if full, ok := airlineNames[strings.ToLower(strings.TrimSpace(v))]; ok {
		return full
	}
	return v
}

func normalizeAircraftType(v string) string {
	lower := strings.ToLower(strings.TrimSpace(v))
	switch {
	case strings.HasPrefix(lower, "wide"):
		return "wide-body"
	case strings.HasPrefix(lower, "narrow"):
		return "narrow-body"
	case lower == "regional jet":
		return "regional jet"
	}
	code := strings.ToUpper(lower)
	if strings.HasPrefix(code, "7") {
		code = "B" + code
	}
	return code
}

// normalizeDate emits ISO YYYY-MM-DD. Values it cannot interpret pass
// through unchanged.
func normalizeDate(v string) string {
	v = strings.TrimSpace(v)
	if regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`).MatchString(v) {
		return v
	}
	if t, err := time.Parse("2/1/2006", v); err == nil {
		return t.Format("2006-01-02")
	}
	// "March 3rd, 2025" style
	cleaned := regexp.MustCompile(`(?i)(\d{1,2})(st|nd|rd|th)`).ReplaceAllString(v, "$1")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	parts := strings.Fields(strings.ToLower(cleaned))
	if len(parts) == 3 {
		if month, ok := monthNumbers[parts[0]]; ok {
			return fmt.Sprintf("%s-%s-%s", parts[2], month, padDay(parts[1]))
		}
	}
	return v
}

func padDay(d string) string {
	if len(d) == 1 {
		return "0" + d
	}
	return d
}
