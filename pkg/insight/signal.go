// Package insight derives qualitative business signals from query
// results and ranks candidate explanations (hypotheses) against them.
package insight

// Signal is a symbolic, boolean-valued observation about a query result,
// drawn from a fixed vocabulary. Signals exist only for the duration of
// one pipeline run.
type Signal string

const (
	SignalHighFailureRate          Signal = "HIGH_FAILURE_RATE"
	SignalPeakSensitive            Signal = "PEAK_SENSITIVE"
	SignalNetworkFragility         Signal = "NETWORK_FRAGILITY"
	SignalDeviceSensitivity        Signal = "DEVICE_SENSITIVITY"
	SignalMaintenanceWindowPattern Signal = "MAINTENANCE_WINDOW_PATTERN"
	SignalExternalDependency       Signal = "EXTERNAL_DEPENDENCY"
	SignalHeavyValidation          Signal = "HEAVY_VALIDATION"
	SignalHighRetries              Signal = "HIGH_RETRIES"
	SignalHighValueRisk            Signal = "HIGH_VALUE_RISK"
	SignalFraudConcentration       Signal = "FRAUD_CONCENTRATION"
	SignalBankConcentration        Signal = "BANK_CONCENTRATION"
)

// Vocabulary is the closed set of recognized signals.
var Vocabulary = map[Signal]bool{
	SignalHighFailureRate:          true,
	SignalPeakSensitive:            true,
	SignalNetworkFragility:         true,
	SignalDeviceSensitivity:        true,
	SignalMaintenanceWindowPattern: true,
	SignalExternalDependency:       true,
	SignalHeavyValidation:          true,
	SignalHighRetries:              true,
	SignalHighValueRisk:            true,
	SignalFraudConcentration:       true,
	SignalBankConcentration:        true,
}

// Set is a signal set for one pipeline run.
type Set map[Signal]bool

// Has reports membership.
func (s Set) Has(sig Signal) bool {
	return s[sig]
}

// Add inserts a signal.
func (s Set) Add(sig Signal) {
	s[sig] = true
}
