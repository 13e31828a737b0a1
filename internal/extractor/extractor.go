// Package extractor derives typed DDR5 RAM attributes from unstructured
// listing text. Extraction is total: unparseable or missing fields come back
// empty instead of producing an error.
package extractor

import (
	"regexp"
	"strings"

	"ramwatch/internal/models"
)

// modelRule maps a vendor part-number pattern to its manufacturer. Rules are
// tried in order; the first match wins, so more specific patterns come first.
type modelRule struct {
	manufacturer string
	pattern      *regexp.Regexp
}

// Vendor part-number formats. Word boundaries keep prefixes like "KF" from
// matching inside ordinary words ("Kaufbeleg").
var modelRules = []modelRule{
	{"Corsair", regexp.MustCompile(`\bCMK\d+GX5M\d\w+\b`)},
	{"G.Skill", regexp.MustCompile(`\bF5-\d{4}\w+(?:-\w+)*\b`)},
	{"Kingston", regexp.MustCompile(`\bKF\d{3}\w+(?:-\d+)?\b`)},
	{"Corsair", regexp.MustCompile(`\bCM[KTHRW]\d\w+\b`)},
	{"G.Skill", regexp.MustCompile(`\bF[45]-\d+\w+(?:-\w+)*\b`)},
	{"Kingston", regexp.MustCompile(`\bKVR\w+\b`)},
	{"Crucial", regexp.MustCompile(`\bCT\d\w+\b`)},
	{"Crucial", regexp.MustCompile(`\bBLS?\d\w+\b`)},
	{"TeamGroup", regexp.MustCompile(`\bTF\d\w*D\w+\b`)},
	{"Patriot", regexp.MustCompile(`\bPVB?\d\w+\b`)},
	{"ADATA", regexp.MustCompile(`\bA[XD]5U\w+(?:-\w+)*\b`)},
}

// keywordRule matches any of its tokens as a plain substring of the
// lowercased text.
type keywordRule struct {
	value  string
	tokens []string
}

var manufacturerRules = []keywordRule{
	{"Corsair", []string{"corsair"}},
	{"G.Skill", []string{"g.skill", "gskill", "g skill"}},
	{"Kingston", []string{"kingston"}},
	{"Crucial", []string{"crucial"}},
	{"TeamGroup", []string{"teamgroup", "team group", "t-force"}},
	{"Patriot", []string{"patriot"}},
	{"ADATA", []string{"adata"}},
	{"Samsung", []string{"samsung"}},
	{"SK Hynix", []string{"sk hynix", "hynix"}},
	{"Micron", []string{"micron"}},
}

var colorRules = []keywordRule{
	{"Schwarz", []string{"schwarz", "black"}},
	{"Weiß", []string{"weiß", "weiss", "white"}},
	{"RGB", []string{"rgb", "led"}},
	{"Silber", []string{"silber", "silver"}},
	{"Grau", []string{"grau", "grey", "gray"}},
}

var (
	// Kit notations like "2x16GB" are kept intact; a bare number plus unit
	// is the generic fallback.
	capacityPattern = regexp.MustCompile(`(?i)\b(\d+(?:x\d+)?)\s*GB\b`)
	speedPattern    = regexp.MustCompile(`(?i)\b(\d{4,5})\s*(MHz|MT/s)`)
	latencyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bCL\s*(\d{2,3})\b`),
		regexp.MustCompile(`(?i)\bC(\d{2})\b`),
	}
)

var (
	ovpKeywords     = []string{"ovp", "originalverpackung", "original verpackt", "versiegelt", "ungeöffnet"}
	invoiceKeywords = []string{"rechnung", "kassenbon", "beleg", "garantie", "kaufbeleg"}

	shippingKeywords   = []string{"versand möglich", "versandkosten", "versand", "dhl", "porto"}
	noShippingKeywords = []string{"nur abholung", "kein versand", "abholung nur", "keine versand"}

	defectKeywords = []string{"defekt", "kaputt", "beschädigt", "schaden"}
)

// Extract parses title and description text into an ExtractedSpec. It never
// fails; every field degrades to its zero value when nothing matches.
func Extract(title, description string) models.ExtractedSpec {
	text := strings.TrimSpace(title + " " + description)
	upper := strings.ToUpper(text)
	lower := strings.ToLower(text)

	spec := models.ExtractedSpec{}

	for _, rule := range modelRules {
		if m := rule.pattern.FindString(upper); m != "" {
			spec.ModelNumber = m
			// Inferred from the part-number prefix when no brand token is
			// present. Lower confidence, but not distinguished in the record.
			spec.Manufacturer = rule.manufacturer
			break
		}
	}

	if spec.Manufacturer == "" {
		spec.Manufacturer = matchKeyword(lower, manufacturerRules)
	}

	if m := capacityPattern.FindStringSubmatch(text); m != nil {
		spec.Capacity = strings.ToUpper(m[1]) + "GB"
	}
	if m := speedPattern.FindStringSubmatch(text); m != nil {
		unit := "MHz"
		if strings.EqualFold(m[2], "mt/s") {
			unit = "MT/s"
		}
		spec.Speed = m[1] + unit
	}
	for _, p := range latencyPatterns {
		if m := p.FindStringSubmatch(upper); m != nil {
			spec.Latency = "CL" + m[1]
			break
		}
	}

	spec.Color = matchKeyword(lower, colorRules)

	spec.HasOVP = containsAny(lower, ovpKeywords)
	spec.HasInvoice = containsAny(lower, invoiceKeywords)
	spec.ShippingAvailable = containsAny(lower, shippingKeywords) && !containsAny(lower, noShippingKeywords)
	spec.DefectMentioned = containsAny(lower, defectKeywords)

	return spec
}

var ddr5Pattern = regexp.MustCompile(`(?i)ddr[\s-]?5\b`)

// IsDDR5 reports whether the text mentions the DDR5 generation in any of its
// common spellings.
func IsDDR5(title, description string) bool {
	return ddr5Pattern.MatchString(title + " " + description)
}

func matchKeyword(lower string, rules []keywordRule) string {
	for _, rule := range rules {
		for _, token := range rule.tokens {
			if strings.Contains(lower, token) {
				return rule.value
			}
		}
	}
	return ""
}

func containsAny(lower string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
