package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// MinAddressLength is the shortest trimmed address worth sending to a provider.
const MinAddressLength = 5

var (
	// maskedNumberRe matches house numbers with redacted trailing digits,
	// e.g. "41XX" or "41**" -> "4100".
	maskedNumberRe = regexp.MustCompile(`\b(\d+)([Xx]+\b|\*+)`)

	// redactionTokenRe matches standalone redaction placeholders such as
	// "***" or "XXX".
	redactionTokenRe = regexp.MustCompile(`(^|\s)(\*+|[Xx]{2,})(\s|$)`)

	// blockRe matches the block-range wording the feed uses to generalize
	// house numbers: "4100 BLOCK COUNTY CENTER DR", "100 BLK OF MAIN ST".
	blockRe = regexp.MustCompile(`(?i)\b(block|blk)\b(\s+of\b)?`)
)

// placeholders are addresses the upstream feed uses when there is nothing to
// geocode. Matched after key normalization.
var placeholders = map[string]bool{
	"unknown":          true,
	"unk":              true,
	"unknown address":  true,
	"unknown location": true,
	"n/a":              true,
	"none":             true,
	"address withheld": true,
	"confidential":     true,
}

// hasRedaction reports whether the raw address contains a block marker or
// masked digits.
func hasRedaction(raw string) bool {
	return strings.Contains(raw, "*") || blockRe.MatchString(raw) ||
		maskedNumberRe.MatchString(raw) || redactionTokenRe.MatchString(raw)
}

// CleanAddress strips redaction markers so a provider sees a plain street
// address: "4100 *** BLOCK COUNTY CENTER DR" -> "4100 COUNTY CENTER DR".
func CleanAddress(raw string) string {
	s := maskedNumberRe.ReplaceAllStringFunc(raw, func(m string) string {
		sub := maskedNumberRe.FindStringSubmatch(m)
		return sub[1] + strings.Repeat("0", len(sub[2]))
	})
	s = blockRe.ReplaceAllString(s, " ")
	// Run twice: adjacent tokens share the separating space.
	s = redactionTokenRe.ReplaceAllString(s, " ")
	s = redactionTokenRe.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " ,;-")
}

// hasStreetName reports whether any token carries letters.
func hasStreetName(cleaned string) bool {
	for _, tok := range strings.Fields(cleaned) {
		if strings.IndexFunc(tok, unicode.IsLetter) >= 0 {
			return true
		}
	}
	return false
}

// RejectAddress returns a wrapped ErrInputRejected when raw is not worth a
// provider call, and nil otherwise.
func RejectAddress(raw string) error {
	trimmed := strings.TrimSpace(raw)
	norm := normalizeKeyPart(trimmed)
	switch {
	case trimmed == "":
		return fmt.Errorf("%w: empty address", ErrInputRejected)
	case len(trimmed) < MinAddressLength:
		return fmt.Errorf("%w: address shorter than %d characters", ErrInputRejected, MinAddressLength)
	case placeholders[norm], strings.Contains(norm, "confidential"), strings.Contains(norm, "withheld"):
		return fmt.Errorf("%w: placeholder address %q", ErrInputRejected, trimmed)
	}

	if !hasStreetName(CleanAddress(trimmed)) {
		if hasRedaction(trimmed) {
			return fmt.Errorf("%w: redacted address without street name", ErrInputRejected)
		}
		return fmt.Errorf("%w: no street name", ErrInputRejected)
	}
	return nil
}
