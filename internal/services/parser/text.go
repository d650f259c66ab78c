package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Text extraction primitives for the agent's semi-structured output.
// All extractors are pure and bounded to a single item's detail block;
// they never read past the next numbered item.

var (
	numberedItemPattern = regexp.MustCompile(`(?m)^\s*(\d+)\.\s+(.+)$`)
	pricePattern        = regexp.MustCompile(`Price:\s*([0-9][0-9,]*(?:\.[0-9]+)?)(?:\s*([A-Z]{2,4}))?`)
	urlPattern          = regexp.MustCompile(`URL:\s*(\S+)`)
	contactPattern      = regexp.MustCompile(`(?:Contact|Phone|WhatsApp):\s*(\+?[0-9(][0-9\s\-().]*)`)
	ratingPattern       = regexp.MustCompile(`\s*\(Rating:\s*([0-9](?:\.[0-9])?)\s*/\s*5\)`)
	sourceTagPattern    = regexp.MustCompile(`\s*\[([^\[\]]+)\]\s*$`)
	nonDigitPattern     = regexp.MustCompile(`[^0-9]`)
)

// DefaultCurrency is assumed when a price carries no currency token
const DefaultCurrency = "ILS"

// NumberedItem is one `<n>. header` line plus the detail block running to
// the next numbered line or end of text.
type NumberedItem struct {
	Ordinal int
	Header  string
	Detail  string
}

// ScanNumberedItems finds numbered list items in a single left-to-right
// scan. Matches cannot overlap by construction.
func ScanNumberedItems(text string) []NumberedItem {
	locs := numberedItemPattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	items := make([]NumberedItem, 0, len(locs))
	for i, loc := range locs {
		ordinal, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}

		detailStart := loc[1]
		detailEnd := len(text)
		if i+1 < len(locs) {
			detailEnd = locs[i+1][0]
		}

		items = append(items, NumberedItem{
			Ordinal: ordinal,
			Header:  strings.TrimSpace(text[loc[4]:loc[5]]),
			Detail:  text[detailStart:detailEnd],
		})
	}
	return items
}

// ExtractPrice finds a `Price:` label followed by a grouped or decimal
// numeric token and an optional currency token. Currency defaults to ILS.
// Unparseable numerics yield ok=false; the caller drops the item.
func ExtractPrice(detail string) (float64, string, bool) {
	m := pricePattern.FindStringSubmatch(detail)
	if m == nil {
		return 0, "", false
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || amount <= 0 {
		return 0, "", false
	}

	currency := m[2]
	if currency == "" {
		currency = DefaultCurrency
	}
	return amount, currency, true
}

// ExtractURL locates a `URL:` label and returns its value
func ExtractURL(detail string) (string, bool) {
	m := urlPattern.FindStringSubmatch(detail)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractContact locates a `Contact:`, `Phone:` or `WhatsApp:` label and
// returns the number normalized to bare digits.
func ExtractContact(detail string) (string, bool) {
	m := contactPattern.FindStringSubmatch(detail)
	if m == nil {
		return "", false
	}
	normalized := nonDigitPattern.ReplaceAllString(m[1], "")
	if normalized == "" {
		return "", false
	}
	return normalized, true
}

// ExtractRating matches a trailing `(Rating: X/5)` annotation and returns
// the rating plus the header with the annotation stripped.
func ExtractRating(header string) (float64, string, bool) {
	m := ratingPattern.FindStringSubmatchIndex(header)
	if m == nil {
		return 0, header, false
	}

	rating, err := strconv.ParseFloat(header[m[2]:m[3]], 64)
	if err != nil || rating < 0 || rating > 5 {
		return 0, header, false
	}

	clean := strings.TrimSpace(header[:m[0]] + header[m[1]:])
	return rating, clean, true
}

// ExtractSourceTag matches a trailing `[tag]` annotation and returns the
// tag plus the header with the annotation stripped.
func ExtractSourceTag(header string) (string, string, bool) {
	m := sourceTagPattern.FindStringSubmatchIndex(header)
	if m == nil {
		return "", header, false
	}

	tag := strings.TrimSpace(header[m[2]:m[3]])
	clean := strings.TrimSpace(header[:m[0]])
	if tag == "" {
		return "", header, false
	}
	return tag, clean, true
}
