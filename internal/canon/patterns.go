package canon

import "regexp"

// patternMatch is one recognized naming convention; order matters, since the
// first matcher that matches wins.
type patternMatch struct {
	re             *regexp.Regexp
	Category       string
	Classification string
}

// The quarterly/annual/monthly suffix families below mirror the period ID
// conventions the teacher repo's GeneratePeriods established ("2026-Q1",
// "2026-JAN", "FY2026"): this registry reuses those naming shapes to
// classify *vertex* names that embed a period, not to model periods
// themselves (periods stay fully opaque to the engine, spec §3.1).
var patterns = []patternMatch{
	{regexp.MustCompile(`(?i)_q[1-4]$`), "period_suffix", ClassSubNode},
	{regexp.MustCompile(`(?i)_fy\d{4}$`), "period_suffix", ClassSubNode},
	{regexp.MustCompile(`_\d{4}$`), "period_suffix", ClassSubNode},
	{regexp.MustCompile(`(?i)_(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)$`), "period_suffix", ClassSubNode},
	{regexp.MustCompile(`(?i)_(budget|forecast|actual)$`), "scenario_suffix", ClassSubNode},
	{regexp.MustCompile(`(?i)_(us|eu|apac|emea|na|latam)$`), "segment_suffix", ClassSubNode},
	{regexp.MustCompile(`(?i)_margin$`), "formula_convention", ClassFormula},
	{regexp.MustCompile(`(?i)_ratio$`), "formula_convention", ClassFormula},
	{regexp.MustCompile(`(?i)_per_share$`), "formula_convention", ClassFormula},
	{regexp.MustCompile(`(?i)_growth$`), "formula_convention", ClassFormula},
	{regexp.MustCompile(`(?i)_yoy$`), "formula_convention", ClassFormula},
	{regexp.MustCompile(`(?i)_qoq$`), "formula_convention", ClassFormula},
}

// MatchPattern tries each recognized convention against name, in order, and
// returns the first match. Patterns classify a name; they never rewrite it.
func MatchPattern(name string) (patternMatch, bool) {
	for _, p := range patterns {
		if p.re.MatchString(name) {
			return p, true
		}
	}
	return patternMatch{}, false
}
