package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Bottle inference scans free-text transaction descriptions for the
// shop's vocabulary ("2 bouteille", "3 chopine", "1 bouteille 1.5L")
// and derives per-category bottle counts. The vocabulary is a
// declarative rule table evaluated by one generic matcher; phrasing
// outside the table silently yields zero for every category. This is a
// best-effort inference, not a hard input contract.

type inferenceRule struct {
	category BottleCategory

	// counted matches the digit-counted form; the quantity is capture
	// group 1. All counted matches in one description are summed.
	counted *regexp.Regexp

	// notAfter, when set, discards a counted match if the text
	// immediately following it matches (a size qualifier claims it).
	notAfter *regexp.Regexp

	// bare matches the bare-word form with implied quantity 1. It only
	// applies when counted produced no match at all.
	bare *regexp.Regexp

	// bareVeto, when set, suppresses the bare form if it matches
	// anywhere in the description.
	bareVeto *regexp.Regexp
}

var (
	sizeAfter    = regexp.MustCompile(`(?i)^\s*(?:0[.,]5|1[.,]5|2)\s*l`)
	sizeAnywhere = regexp.MustCompile(`(?i)(?:0[.,]5|1[.,]5|2)\s*l`)

	inferenceRules = []inferenceRule{
		{
			category: Chopine,
			counted:  regexp.MustCompile(`(?i)(\d+)\s*chopines?`),
			bare:     regexp.MustCompile(`(?i)chopines?`),
		},
		{
			category: Guinness,
			counted:  regexp.MustCompile(`(?i)(\d+)\s*(?:bouteilles?\s*|bottles?\s*)?0[.,]5\s*l`),
		},
		{
			category: Malta,
			counted:  regexp.MustCompile(`(?i)(\d+)\s*(?:bouteilles?\s*|bottles?\s*)?1[.,]5\s*l`),
		},
		{
			category: Coca,
			counted:  regexp.MustCompile(`(?i)(\d+)\s*(?:bouteilles?\s*|bottles?\s*)?2\s*l`),
		},
		{
			category: Beer,
			counted:  regexp.MustCompile(`(?i)(\d+)\s*(?:bouteilles?|bottles?)`),
			notAfter: sizeAfter,
			bare:     regexp.MustCompile(`(?i)bouteilles?|bottles?`),
			bareVeto: sizeAnywhere,
		},
	}
)

// InferBottleCounts derives bottle counts per category from a free-text
// description. The function is pure and idempotent: the same text
// always yields the same counts.
func InferBottleCounts(description string) BottleCounts {
	counts := NewBottleCounts()
	for _, rule := range inferenceRules {
		matches := rule.counted.FindAllStringSubmatchIndex(description, -1)
		for _, m := range matches {
			if rule.notAfter != nil && rule.notAfter.MatchString(description[m[1]:]) {
				continue
			}
			n, err := strconv.Atoi(description[m[2]:m[3]])
			if err != nil {
				continue
			}
			counts[rule.category] += n
		}
		if len(matches) == 0 && rule.bare != nil && rule.bare.MatchString(description) {
			if rule.bareVeto == nil || !rule.bareVeto.MatchString(description) {
				counts[rule.category]++
			}
		}
	}
	return counts
}

// Return audit entries use the fixed form "Returned: <n> <Category>"
// so that outstanding quantities stay derivable from the log alone.
var (
	returnedPrefix = regexp.MustCompile(`(?i)^\s*returned\s*:`)
	returnedPair   = regexp.MustCompile(`(?i)(\d+)\s*(beers?|guinness|maltas?|cocas?|chopines?)`)
)

// ReturnDescription renders the audit description for a bottle return,
// e.g. "Returned: 2 Chopine, 1 Beer". Categories with non-positive
// counts are omitted.
func ReturnDescription(returned BottleCounts) string {
	var parts []string
	for _, cat := range Categories() {
		if n := returned[cat]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, titleCategory(cat)))
		}
	}
	return "Returned: " + strings.Join(parts, ", ")
}

// OutstandingBottles nets inferred takes against return audit entries
// over an immutable transaction log, clamped at zero per category.
// Running it twice over the same log yields identical results.
func OutstandingBottles(txs []Transaction) BottleCounts {
	taken := NewBottleCounts()
	returned := NewBottleCounts()
	for _, tx := range txs {
		if tx.Type != TxDebt {
			continue
		}
		if returnedPrefix.MatchString(tx.Description) {
			for _, m := range returnedPair.FindAllStringSubmatch(tx.Description, -1) {
				n, err := strconv.Atoi(m[1])
				if err != nil {
					continue
				}
				if cat, ok := categoryFromWord(m[2]); ok {
					returned[cat] += n
				}
			}
			continue
		}
		taken = taken.Plus(InferBottleCounts(tx.Description))
	}

	out := NewBottleCounts()
	for _, cat := range Categories() {
		out[cat] = max(0, taken[cat]-returned[cat])
	}
	return out
}

func categoryFromWord(w string) (BottleCategory, bool) {
	w = strings.ToLower(w)
	if w != "guinness" {
		w = strings.TrimSuffix(w, "s")
	}
	for _, cat := range Categories() {
		if string(cat) == w {
			return cat, true
		}
	}
	return "", false
}

func titleCategory(cat BottleCategory) string {
	s := string(cat)
	return strings.ToUpper(s[:1]) + s[1:]
}
