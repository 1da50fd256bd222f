package extract

import (
	"regexp"
	"strings"
)

// Domain lexicon for procedural documents: tools, materials, PPE,
// measurement units, part-number shapes, and procedural verbs. Matches are
// case-insensitive except where the pattern itself requires casing.
var (
	toolRe     = regexp.MustCompile(`(?i)\b(?:torque wrench|soldering iron|allen key|hex key|wrench|screwdriver|hammer|drill|pliers|hacksaw|saw|multimeter|clamp|ratchet|socket|crimper|caliper|spanner|file|chisel|micrometer)\b`)
	materialRe = regexp.MustCompile(`(?i)\b(?:lubricant|grease|oil|solvent|adhesive|sealant|epoxy|coolant|gasket|o-ring|bolt|nut|screw|washer|bearing|filter|belt|hose|fuse|wire|flux|solder|thread ?locker)\b`)
)

var lexiconPatterns = []*regexp.Regexp{
	toolRe,
	materialRe,
	// Personal protective equipment
	regexp.MustCompile(`(?i)\b(?:safety glasses|safety goggles|ear protection|face shield|hard hat|goggles|gloves|helmet|respirator|harness|ppe)\b`),
	// Measurements with units
	regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:mm|cm|psi|bar|nm|kpa|mpa|rpm|kg|lbs?|ft|in|volts?|amps?|watts?|hz)\b`),
	// Part numbers: letters-dash-digits, e.g. "PN-1042", "M8", "XJ-900A"
	regexp.MustCompile(`\b[A-Z]{1,4}-?\d{1,6}[A-Z]?\b`),
	// Procedural verbs
	regexp.MustCompile(`(?i)\b(?:tighten|loosen|calibrate|install|remove|inspect|torque|lubricate|assemble|disassemble|align|measure|replace|secure|connect|disconnect|verify|depressurize|isolate)\b`),
}

// Tools returns the tool names mentioned in text, lower-cased and
// de-duplicated in first-seen order.
func Tools(text string) []string {
	return lexiconMatches(toolRe, text)
}

// Materials returns the materials and consumables mentioned in text,
// lower-cased and de-duplicated in first-seen order.
func Materials(text string) []string {
	return lexiconMatches(materialRe, text)
}

func lexiconMatches(re *regexp.Regexp, text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range re.FindAllString(text, -1) {
		m = strings.ToLower(m)
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

var (
	capitalizedWordRe = regexp.MustCompile(`\b[A-Z][a-zA-Z]+\b`)
	quotedRe          = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	abbreviationRe    = regexp.MustCompile(`\b[A-Z]{2,}\b`)
)

// stopWords excludes common question and filler words from all heuristics.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"is": {}, "are": {}, "was": {}, "be": {}, "been": {}, "do": {},
	"does": {}, "did": {}, "will": {}, "can": {}, "could": {},
	"should": {}, "would": {}, "must": {}, "may": {}, "need": {},
	"what": {}, "which": {}, "when": {}, "where": {}, "who": {},
	"why": {}, "how": {}, "this": {}, "that": {}, "these": {},
	"those": {}, "with": {}, "from": {}, "for": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "at": {}, "by": {}, "as": {}, "it": {},
	"its": {}, "i": {}, "we": {}, "you": {}, "your": {}, "my": {},
	"me": {}, "they": {}, "them": {}, "there": {}, "here": {},
	"step": {}, "steps": {}, "next": {}, "previous": {}, "first": {},
	"last": {}, "before": {}, "after": {}, "during": {}, "then": {},
	"now": {}, "please": {}, "tell": {}, "about": {}, "all": {},
	"any": {}, "some": {}, "if": {}, "not": {}, "no": {}, "yes": {},
}
