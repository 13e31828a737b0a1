// Package scorer ranks extracted listings by how attractive they are to a
// buyer. Scoring is a pure function over the extracted spec.
package scorer

import "ramwatch/internal/models"

// MaxScore is the sum of all positive rule weights.
const MaxScore = 16

// rule is one additive scoring criterion. All rules are evaluated every time;
// the score is the exact sum of the applicable weights, unclamped.
type rule struct {
	name    string
	weight  int
	applies func(models.ExtractedSpec) bool
}

var rules = []rule{
	{"model number", 5, func(s models.ExtractedSpec) bool { return s.ModelNumber != "" }},
	{"original packaging", 3, func(s models.ExtractedSpec) bool { return s.HasOVP }},
	{"invoice", 3, func(s models.ExtractedSpec) bool { return s.HasInvoice }},
	{"shipping", 2, func(s models.ExtractedSpec) bool { return s.ShippingAvailable }},
	{"full specs", 2, func(s models.ExtractedSpec) bool {
		return s.Capacity != "" && s.Speed != "" && s.Latency != ""
	}},
	{"color", 1, func(s models.ExtractedSpec) bool { return s.Color != "" }},
	{"defect", -2, func(s models.ExtractedSpec) bool { return s.DefectMentioned }},
}

// Score returns the priority score for a spec.
func Score(spec models.ExtractedSpec) int {
	score := 0
	for _, r := range rules {
		if r.applies(spec) {
			score += r.weight
		}
	}
	return score
}
