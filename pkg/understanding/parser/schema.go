package parser

import "airport-capacity-be/pkg/store"

// defaultSchemas binds each intent to its parameter list. The required flags
// drive both missingRequired reporting and the disambiguator's missing-entity
// checks.
func defaultSchemas() map[string]store.ParameterSchema {
	return map[string]store.ParameterSchema{
		store.IntentCapacityQuery: {
			{Name: "terminal", Type: store.EntityTerminal, Required: true},
			{Name: "time_period", Type: store.EntityTimePeriod, Required: false},
			{Name: "capacity_metric", Type: store.EntityCapacityMetric, Required: false},
			{Name: "date", Type: store.EntityDate, Required: false},
			{Name: "historical", Type: store.TypeBoolean, Required: false},
		},
		store.IntentMaintenanceQuery: {
			{Name: "stand", Type: store.EntityStand, Required: true},
			{Name: "maintenance_type", Type: store.EntityMaintenanceType, Required: false},
			{Name: "time_period", Type: store.EntityTimePeriod, Required: false},
			{Name: "date", Type: store.EntityDate, Required: false},
			{Name: "urgent", Type: store.TypeBoolean, Required: false},
		},
		store.IntentInfrastructureQuery: {
			{Name: "terminal", Type: store.EntityTerminal, Required: false},
			{Name: "pier", Type: store.EntityPier, Required: false},
			{Name: "stand", Type: store.EntityStand, Required: false},
			{Name: "aircraft_type", Type: store.EntityAircraftType, Required: false},
		},
		store.IntentStandStatusQuery: {
			{Name: "stand", Type: store.EntityStand, Required: true},
			{Name: "time_period", Type: store.EntityTimePeriod, Required: false},
		},
		store.IntentScenarioQuery: {
			{Name: "terminal", Type: store.EntityTerminal, Required: false},
			{Name: "stand", Type: store.EntityStand, Required: false},
			{Name: "time_period", Type: store.EntityTimePeriod, Required: false},
			{Name: "aircraft_type", Type: store.EntityAircraftType, Required: false},
			{Name: "include_weather", Type: store.TypeBoolean, Required: false},
		},
		store.IntentComparisonQuery: {
			{Name: "terminal", Type: store.EntityTerminal, Required: false},
			{Name: "pier", Type: store.EntityPier, Required: false},
			{Name: "time_period", Type: store.EntityTimePeriod, Required: false},
			{Name: "capacity_metric", Type: store.EntityCapacityMetric, Required: false},
			{Name: "airline", Type: store.EntityAirline, Required: false},
		},
		store.IntentUnknown: {},
	}
}
