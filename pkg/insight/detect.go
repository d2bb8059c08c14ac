package insight

import (
	"sort"
	"strings"

	"github.com/SiL3nTL00p/shinchan.ai/pkg/duck"
)

// Thresholds for the detection rules. These were tuned against the
// production transactions dataset; changing them changes which
// hypotheses surface.
const (
	failureRateThresholdPct = 5.0
	peakSpreadRatio         = 0.5
	variationCoefficient    = 0.3
	weekendUpliftRatio      = 1.5
	retryCountThreshold     = 2.0
	highValueFlagRate       = 0.05
)

// externalTypes are transaction categories that depend on external
// biller systems and carry multi-step validation.
var externalTypes = map[string]bool{
	"Bill Payment": true,
	"Recharge":     true,
}

// rule is one independent detection predicate. Rules only read the
// table view and the question text; they never call out.
type rule struct {
	signal Signal
	detect func(v *tableView, query string) bool
}

// rules are evaluated in order into a signal set. Order only matters
// for readability; each rule is independent of the others. The one
// compound inference (HIGH_RETRIES from failure + external dependency)
// runs as a post-pass in Detect.
var rules = []rule{
	{SignalHighFailureRate, detectHighFailureRate},
	{SignalPeakSensitive, detectPeakSensitive},
	{SignalNetworkFragility, detectNetworkFragility},
	{SignalDeviceSensitivity, detectDeviceSensitivity},
	{SignalMaintenanceWindowPattern, detectMaintenanceWindow},
	{SignalExternalDependency, detectExternalDependency},
	{SignalHeavyValidation, detectHeavyValidation},
	{SignalHighRetries, detectRetryColumn},
	{SignalHighValueRisk, detectHighValueRisk},
	{SignalFraudConcentration, detectFraudConcentration},
	{SignalBankConcentration, detectBankConcentration},
}

// Detect applies every rule to the result and returns the detected
// signals sorted by name. An empty table always yields the empty set.
// Detection is pure: same table and text, same signals.
func Detect(res duck.Result, query string) []Signal {
	set := DetectSet(res, query)
	out := make([]Signal, 0, len(set))
	for sig := range set {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DetectSet is Detect returning the raw set.
func DetectSet(res duck.Result, query string) Set {
	set := make(Set)
	if res.Empty() {
		return set
	}

	v := newTableView(res)
	queryLower := strings.ToLower(query)
	for _, r := range rules {
		if r.detect(v, queryLower) {
			set.Add(r.signal)
		}
	}

	// Sustained failures against an external dependency imply retry
	// storms even without an observed retry column.
	if set.Has(SignalHighFailureRate) && set.Has(SignalExternalDependency) {
		set.Add(SignalHighRetries)
	}

	return set
}

// detectHighFailureRate fires when a failure percentage column exceeds
// the threshold, or when a rate can be derived from a status column or
// from failed/total count pairs.
func detectHighFailureRate(v *tableView, _ string) bool {
	for _, col := range v.columns() {
		lower := strings.ToLower(col)
		if !strings.Contains(lower, "fail") {
			continue
		}
		if !strings.Contains(lower, "rate") && !strings.Contains(lower, "pct") && !strings.Contains(lower, "percent") {
			continue
		}
		vals := v.numbers(col)
		if len(vals) > 0 && maxOf(vals) > failureRateThresholdPct {
			return true
		}
	}

	// Derive a rate from a raw status column.
	if statuses := v.stringVals("transaction_status"); len(statuses) > 0 {
		failed := 0
		for _, s := range statuses {
			if strings.ToUpper(s) == "FAILED" {
				failed++
			}
		}
		total := len(v.result.Rows)
		if total > 0 && float64(failed)/float64(total)*100 > failureRateThresholdPct {
			return true
		}
	}

	// Derive a rate from failed-count / total-count column pairs.
	totalCol := ""
	for _, col := range v.columns() {
		lower := strings.ToLower(col)
		if strings.Contains(lower, "total") || strings.Contains(lower, "count") {
			totalCol = col
			break
		}
	}
	if totalCol == "" {
		return false
	}
	for _, col := range v.columns() {
		lower := strings.ToLower(col)
		if !strings.Contains(lower, "failed") && !strings.Contains(lower, "failures") {
			continue
		}
		failed := v.numbers(col)
		totals := v.numbers(totalCol)
		for i := range failed {
			if i < len(totals) && totals[i] > 0 && failed[i]/totals[i]*100 > failureRateThresholdPct {
				return true
			}
		}
	}
	return false
}

// detectPeakSensitive fires when the table has an hour-of-day dimension
// and some other numeric column spikes well above its mean.
func detectPeakSensitive(v *tableView, _ string) bool {
	if !v.hasColumn("hour_of_day") {
		return false
	}
	for _, col := range v.columns() {
		if strings.ToLower(col) == "hour_of_day" {
			continue
		}
		vals := v.numbers(col)
		if len(vals) < 2 {
			continue
		}
		mean := meanOf(vals)
		if mean > 0 && (maxOf(vals)-mean)/mean > peakSpreadRatio {
			return true
		}
	}
	return false
}

// detectNetworkFragility asserts whenever a network-type dimension is
// present; the coefficient-of-variation check merely reconfirms it.
func detectNetworkFragility(v *tableView, _ string) bool {
	return v.hasColumn("network_type")
}

func detectDeviceSensitivity(v *tableView, _ string) bool {
	if !v.hasColumn("device_type") {
		return false
	}
	for _, col := range v.columns() {
		lower := strings.ToLower(col)
		if !strings.Contains(lower, "fail") && !strings.Contains(lower, "rate") {
			continue
		}
		vals := v.numbers(col)
		if len(vals) > 1 && stdOf(vals) > 0 {
			return true
		}
	}
	return false
}

// detectMaintenanceWindow fires when weekend-flagged rows show a failure
// rate well above the weekday rows.
func detectMaintenanceWindow(v *tableView, _ string) bool {
	if !v.hasColumn("is_weekend") {
		return false
	}
	for _, col := range v.columns() {
		lower := strings.ToLower(col)
		if !strings.Contains(lower, "fail") && !strings.Contains(lower, "rate") {
			continue
		}
		weekend := v.numbersWhere(col, "is_weekend", 1)
		weekday := v.numbersWhere(col, "is_weekend", 0)
		if len(weekend) == 0 || len(weekday) == 0 {
			continue
		}
		weekdayMean := meanOf(weekday)
		if weekdayMean > 0 && meanOf(weekend) > weekdayMean*weekendUpliftRatio {
			return true
		}
	}
	return false
}

func detectExternalDependency(v *tableView, query string) bool {
	for _, t := range v.stringVals("transaction_type") {
		if externalTypes[t] {
			return true
		}
	}
	return mentionsBillers(query)
}

func detectHeavyValidation(v *tableView, query string) bool {
	for _, t := range v.stringVals("transaction_type") {
		if externalTypes[t] {
			return true
		}
	}
	return mentionsBillers(query)
}

func mentionsBillers(queryLower string) bool {
	return strings.Contains(queryLower, "bill") ||
		strings.Contains(queryLower, "recharge") ||
		strings.Contains(queryLower, "biller")
}

// detectRetryColumn is the direct trigger for HIGH_RETRIES; the compound
// inference from other signals lives in DetectSet.
func detectRetryColumn(v *tableView, _ string) bool {
	for _, col := range v.columns() {
		if !strings.Contains(strings.ToLower(col), "retry") {
			continue
		}
		vals := v.numbers(col)
		if len(vals) > 0 && maxOf(vals) > retryCountThreshold {
			return true
		}
	}
	return false
}

// detectHighValueRisk fires when above-median-amount rows are flagged at
// a rate above the threshold.
func detectHighValueRisk(v *tableView, _ string) bool {
	amountCol, ok := v.colsByLower["amount_inr"]
	if !ok {
		return false
	}
	flagCol, ok := v.colsByLower["fraud_flag"]
	if !ok {
		return false
	}

	amounts := v.numbers(amountCol)
	if len(amounts) == 0 {
		return false
	}
	median := medianOf(amounts)

	var flags []float64
	for _, row := range v.result.Rows {
		amount, ok := asFloat(row[amountCol])
		if !ok || amount <= median {
			continue
		}
		if f, ok := asFloat(row[flagCol]); ok {
			flags = append(flags, f)
		}
	}
	return len(flags) > 0 && meanOf(flags) > highValueFlagRate
}

// detectFraudConcentration is purely contextual: the question itself is
// about fraud or risk, regardless of what the table holds.
func detectFraudConcentration(_ *tableView, query string) bool {
	return strings.Contains(query, "fraud") ||
		strings.Contains(query, "flag") ||
		strings.Contains(query, "risk")
}

func detectBankConcentration(v *tableView, _ string) bool {
	if !v.hasColumn("sender_bank") && !v.hasColumn("receiver_bank") {
		return false
	}
	for _, col := range v.columns() {
		lower := strings.ToLower(col)
		if !strings.Contains(lower, "fail") && !strings.Contains(lower, "rate") {
			continue
		}
		vals := v.numbers(col)
		if len(vals) < 2 {
			continue
		}
		mean := meanOf(vals)
		if mean != 0 && stdOf(vals)/mean > variationCoefficient {
			return true
		}
	}
	return false
}
