package openfda

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Per-endpoint result caps enforced by the openFDA API. Requested limits
// above the cap are clamped rather than rejected.
const (
	MaxEventLimit  = 100
	MaxLabelLimit  = 50
	MaxRecallLimit = 100
)

// Default result counts applied when the caller does not request a limit.
const (
	DefaultEventLimit  = 10
	DefaultLabelLimit  = 5
	DefaultRecallLimit = 10
)

// Classifications lists the fixed FDA recall classification enum.
var Classifications = []string{"Class I", "Class II", "Class III"}

// dateRangePattern matches the wire format YYYYMMDD_to_YYYYMMDD.
var dateRangePattern = regexp.MustCompile(`^\d{8}_to_\d{8}$`)

// EventQuery selects adverse event reports from the FAERS dataset.
type EventQuery struct {
	// DrugName is the medicinal product to search for. Required.
	DrugName string

	// Limit is the maximum number of results. Must be positive; values
	// above [MaxEventLimit] are clamped.
	Limit int

	// DateRange optionally restricts the report receive date. Format:
	// "YYYYMMDD_to_YYYYMMDD".
	DateRange string
}

// Values renders the query as openFDA request parameters.
func (q EventQuery) Values() (url.Values, error) {
	name, err := sanitizeDrugName(q.DrugName)
	if err != nil {
		return nil, err
	}
	limit, err := clampLimit(q.Limit, MaxEventLimit)
	if err != nil {
		return nil, err
	}

	search := `patient.drug.medicinalproduct:"` + name + `"`
	if q.DateRange != "" {
		interval, err := dateInterval(q.DateRange)
		if err != nil {
			return nil, err
		}
		search += " AND receivedate:" + interval
	}

	return url.Values{
		"search": {search},
		"limit":  {strconv.Itoa(limit)},
	}, nil
}

// EffectiveLimit returns the limit after defaulting and clamping, ignoring
// validation errors. Used by the normalizer to truncate results.
func (q EventQuery) EffectiveLimit() int { return effectiveLimit(q.Limit, MaxEventLimit) }

// LabelQuery selects structured product labeling (SPL) records.
type LabelQuery struct {
	// DrugName matches against both brand and generic names. Required.
	DrugName string

	// Limit is the maximum number of results. Must be positive; values
	// above [MaxLabelLimit] are clamped.
	Limit int
}

// Values renders the query as openFDA request parameters.
func (q LabelQuery) Values() (url.Values, error) {
	name, err := sanitizeDrugName(q.DrugName)
	if err != nil {
		return nil, err
	}
	limit, err := clampLimit(q.Limit, MaxLabelLimit)
	if err != nil {
		return nil, err
	}

	search := `openfda.brand_name:"` + name + `" OR openfda.generic_name:"` + name + `"`
	return url.Values{
		"search": {search},
		"limit":  {strconv.Itoa(limit)},
	}, nil
}

// EffectiveLimit returns the limit after defaulting and clamping.
func (q LabelQuery) EffectiveLimit() int { return effectiveLimit(q.Limit, MaxLabelLimit) }

// RecallQuery selects drug enforcement (recall) reports.
type RecallQuery struct {
	// DrugName matches against the recalled product description. Required.
	DrugName string

	// Classification optionally restricts results to one FDA recall class.
	// Must be one of [Classifications] when set.
	Classification string

	// Limit is the maximum number of results. Must be positive; values
	// above [MaxRecallLimit] are clamped.
	Limit int
}

// Values renders the query as openFDA request parameters.
func (q RecallQuery) Values() (url.Values, error) {
	name, err := sanitizeDrugName(q.DrugName)
	if err != nil {
		return nil, err
	}
	limit, err := clampLimit(q.Limit, MaxRecallLimit)
	if err != nil {
		return nil, err
	}

	parts := []string{`product_description:"` + name + `"`}
	if q.Classification != "" {
		if !validClassification(q.Classification) {
			return nil, invalidArgf("classification %q is not one of %s",
				q.Classification, strings.Join(Classifications, ", "))
		}
		parts = append(parts, `classification:"`+q.Classification+`"`)
	}

	return url.Values{
		"search": {strings.Join(parts, " AND ")},
		"limit":  {strconv.Itoa(limit)},
	}, nil
}

// EffectiveLimit returns the limit after defaulting and clamping.
func (q RecallQuery) EffectiveLimit() int { return effectiveLimit(q.Limit, MaxRecallLimit) }

// sanitizeDrugName trims the name and strips characters that would break
// out of the quoted phrase in the search expression. Returns
// KindInvalidArgument when nothing remains.
func sanitizeDrugName(name string) (string, error) {
	cleaned := strings.TrimSpace(name)
	cleaned = strings.ReplaceAll(cleaned, `"`, "")
	if cleaned == "" {
		return "", invalidArgf("drug_name must not be empty")
	}
	return cleaned, nil
}

// clampLimit rejects non-positive limits and clamps the rest into [1, max].
func clampLimit(limit, max int) (int, error) {
	if limit <= 0 {
		return 0, invalidArgf("limit must be a positive integer, got %d", limit)
	}
	if limit > max {
		return max, nil
	}
	return limit, nil
}

// effectiveLimit mirrors clampLimit without the error path.
func effectiveLimit(limit, max int) int {
	if limit <= 0 {
		return 0
	}
	if limit > max {
		return max
	}
	return limit
}

// dateInterval converts "YYYYMMDD_to_YYYYMMDD" into the openFDA range
// syntax "[YYYYMMDD TO YYYYMMDD]".
func dateInterval(dateRange string) (string, error) {
	if !dateRangePattern.MatchString(dateRange) {
		return "", invalidArgf("date_range %q does not match YYYYMMDD_to_YYYYMMDD", dateRange)
	}
	return "[" + strings.Replace(dateRange, "_to_", " TO ", 1) + "]", nil
}

// validClassification reports whether c is a member of the FDA enum.
func validClassification(c string) bool {
	for _, known := range Classifications {
		if c == known {
			return true
		}
	}
	return false
}
