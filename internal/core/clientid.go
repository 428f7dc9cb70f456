package core

import (
	"fmt"
	"regexp"
	"strconv"
)

// NextClientID allocates the next client id for the given set of
// existing ids. Ids follow the pattern <prefix><zero-padded integer>
// (e.g. "G007" for prefix "G", width 3). Ids that do not match the
// pattern are ignored for numbering purposes.
//
// The function is pure: it returns the smallest positive integer not
// present in the matched set, so ids freed by deletion are recycled.
// When the numeric space at the configured width is exhausted it
// returns an error; there is no recovery at that width.
func NextClientID(existing []string, prefix string, width int) (string, error) {
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `(\d{` + strconv.Itoa(width) + `})$`)

	used := make(map[int]bool, len(existing))
	for _, id := range existing {
		m := pattern.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		used[n] = true
	}

	max := 1
	for i := 0; i < width; i++ {
		max *= 10
	}
	max--

	for n := 1; n <= max; n++ {
		if !used[n] {
			return fmt.Sprintf("%s%0*d", prefix, width, n), nil
		}
	}
	return "", fmt.Errorf("client id space exhausted for prefix %q at width %d", prefix, width)
}
