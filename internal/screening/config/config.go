// Package config holds the screening rule tunables. The rule shape is fixed;
// only thresholds and symptom vocabularies are operator-adjustable.
package config

// Config parameterizes the screening gate.
type Config struct {
	// RejectTemperatureCelsius is the inclusive fever threshold for hard
	// rejection.
	RejectTemperatureCelsius float64

	// CommunicableSymptoms reject immediately: the patient must not enter
	// the shared waiting area.
	CommunicableSymptoms []string

	// HighRiskSymptoms reject immediately and direct the patient to
	// emergency care instead of the kiosk queue.
	HighRiskSymptoms []string
}

// DefaultConfig returns the clinically reviewed defaults.
func DefaultConfig() Config {
	return Config{
		RejectTemperatureCelsius: 37.5,
		CommunicableSymptoms: []string{
			"fever",
			"persistent_cough",
			"sore_throat",
			"loss_of_taste",
			"loss_of_smell",
			"rash",
		},
		HighRiskSymptoms: []string{
			"chest_pain",
			"difficulty_breathing",
			"severe_bleeding",
			"fainting",
		},
	}
}
