package suggestion

import (
	"strings"

	"airport-capacity-be/pkg/store"
)

// entityTemplates are filled with the bound entity value.
var entityTemplates = map[string][]string{
	store.EntityTerminal: {
		"Show maintenance schedule for {terminal}",
		"What is the capacity of {terminal}?",
	},
	store.EntityStand: {
		"What is the status of {stand}?",
		"When is {stand} next scheduled for maintenance?",
	},
	store.EntityPier: {
		"Which stands belong to {pier}?",
		"What is the utilization of {pier}?",
	},
	store.EntityTimePeriod: {
		"How does capacity change during {time_period}?",
	},
	store.EntityAircraftType: {
		"Which stands can accommodate {aircraft_type} aircraft?",
	},
	store.EntityAirline: {
		"Which stands are allocated to {airline}?",
	},
}

// intentTemplates are keyed by the current intent.
var intentTemplates = map[string][]string{
	store.IntentCapacityQuery: {
		"How does this compare to last week?",
		"What is the forecast for tomorrow?",
	},
	store.IntentMaintenanceQuery: {
		"How does this maintenance affect capacity?",
		"Which stands are affected?",
	},
	store.IntentInfrastructureQuery: {
		"What is the current utilization of these facilities?",
	},
	store.IntentStandStatusQuery: {
		"Show upcoming maintenance for this stand",
	},
	store.IntentScenarioQuery: {
		"What would the impact be during peak hours?",
	},
	store.IntentComparisonQuery: {
		"Show the underlying numbers for this comparison",
	},
}

// relatedIntents is the static relation map; each related intent contributes
// one follow-up.
var relatedIntents = map[string][]string{
	store.IntentCapacityQuery:       {store.IntentMaintenanceQuery, store.IntentInfrastructureQuery, store.IntentScenarioQuery},
	store.IntentMaintenanceQuery:    {store.IntentCapacityQuery, store.IntentStandStatusQuery},
	store.IntentInfrastructureQuery: {store.IntentCapacityQuery, store.IntentStandStatusQuery},
	store.IntentStandStatusQuery:    {store.IntentMaintenanceQuery, store.IntentCapacityQuery},
	store.IntentScenarioQuery:       {store.IntentCapacityQuery, store.IntentComparisonQuery},
	store.IntentComparisonQuery:     {store.IntentCapacityQuery, store.IntentScenarioQuery},
}

var relatedIntentTexts = map[string]string{
	store.IntentCapacityQuery:       "What is the capacity impact?",
	store.IntentMaintenanceQuery:    "Is any maintenance planned?",
	store.IntentInfrastructureQuery: "Show the infrastructure overview",
	store.IntentStandStatusQuery:    "What is the current stand status?",
	store.IntentScenarioQuery:       "What if demand increases by 10%?",
	store.IntentComparisonQuery:     "How does this compare across terminals?",
}

// generalTemplates is the fixed pool; at most two are drawn per query.
var generalTemplates = []string{
	"Show today's overall airport capacity",
	"Which terminals are busiest right now?",
	"Are there any maintenance works planned this week?",
	"Show stand availability for wide-body aircraft",
	"What was last week's peak utilization?",
}

func fillTemplate(tpl string, entities map[string]string) string {
	out := tpl
	for entityType, value := range entities {
		out = strings.ReplaceAll(out, "{"+entityType+"}", value)
	}
	return out
}
