package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopwise/dealagent/internal/models"
)

var (
	bundleHeaderPattern = regexp.MustCompile(`\((\d+)\s+stores?\)`)
	offersLinePattern   = regexp.MustCompile(`Offers\s+(\d+)\s*/\s*(\d+)\s+products`)
	bundleItemPattern   = regexp.MustCompile(`(?m)^\s*-\s*(.+?):\s*([0-9][0-9,]*(?:\.[0-9]+)?)(?:\s*([A-Z]{2,4}))?(?:\s*\|\s*(\S+))?\s*$`)
	totalLinePattern    = regexp.MustCompile(`(?m)^\s*Total:\s*([0-9][0-9,]*(?:\.[0-9]+)?)(?:\s*([A-Z]{2,4}))?`)
)

// ParseBundles extracts multi-product bundle groupings from raw output.
// The single bundle section is located by its store-count annotation;
// absent means an empty result. Entries lacking a positive parsed total
// are dropped. A malformed product sub-line is skipped without aborting
// the rest of the entry.
func ParseBundles(rawText string) []models.Bundle {
	body, ok := bundleSectionBody(rawText)
	if !ok {
		return nil
	}

	items := ScanNumberedItems(body)
	if len(items) == 0 {
		return nil
	}

	bundles := make([]models.Bundle, 0, len(items))
	for _, item := range items {
		if bundle, ok := parseBundleEntry(item); ok {
			bundles = append(bundles, bundle)
		}
	}

	if len(bundles) == 0 {
		return nil
	}
	return bundles
}

// bundleSectionBody returns the span of the bundle section. The span ends
// at the next `===` delimiter of any kind, or at end of text when the
// bundle section is the final section.
func bundleSectionBody(rawText string) (string, bool) {
	for _, span := range splitSections(rawText) {
		if span.isBundle || bundleHeaderPattern.MatchString(span.name) {
			return span.body, true
		}
	}
	return "", false
}

func parseBundleEntry(item NumberedItem) (models.Bundle, bool) {
	total, totalCurrency, ok := extractTotal(item.Detail)
	if !ok {
		return models.Bundle{}, false
	}

	bundle := models.Bundle{TotalPrice: total}

	header := item.Header
	if rating, clean, ok := ExtractRating(header); ok {
		bundle.Rating = rating
		bundle.HasRating = true
		header = clean
	}
	bundle.StoreName = strings.TrimSpace(header)

	if m := offersLinePattern.FindStringSubmatch(item.Detail); m != nil {
		bundle.OfferedCount, _ = strconv.Atoi(m[1])
		bundle.TotalCount, _ = strconv.Atoi(m[2])
	}

	for _, m := range bundleItemPattern.FindAllStringSubmatch(item.Detail, -1) {
		price, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
		if err != nil || price <= 0 {
			continue
		}
		currency := m[3]
		if currency == "" {
			currency = DefaultCurrency
		}
		bundle.Items = append(bundle.Items, models.BundleItem{
			Name:     strings.TrimSpace(m[1]),
			Price:    price,
			Currency: currency,
			URL:      m[4],
		})
	}

	bundle.Currency = totalCurrency
	if bundle.Currency == "" {
		if len(bundle.Items) > 0 {
			bundle.Currency = bundle.Items[0].Currency
		} else {
			bundle.Currency = DefaultCurrency
		}
	}

	if phone, ok := ExtractContact(item.Detail); ok {
		bundle.ContactPhone = phone
	}

	return bundle, true
}

func extractTotal(detail string) (float64, string, bool) {
	m := totalLinePattern.FindStringSubmatch(detail)
	if m == nil {
		return 0, "", false
	}
	total, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || total <= 0 {
		return 0, "", false
	}
	return total, m[2], true
}
