package parser

import (
	"regexp"
	"strings"

	"github.com/shopwise/dealagent/internal/models"
)

var sectionPattern = regexp.MustCompile(`(?m)^===\s*(.+?)\s*===\s*$`)

// BundleMarker identifies the one section handled by the bundle parser
// instead of the offer parser.
const BundleMarker = "BUNDLE OPPORTUNITIES"

// implicitSectionName labels the single implicit section used when the
// text carries no section delimiters at all.
const implicitSectionName = "Results"

type sectionSpan struct {
	name     string
	body     string
	isBundle bool
}

// splitSections locates `=== name ===` delimiters and returns each
// section's span, running from just after its delimiter to just before
// the next delimiter of any kind or end of text.
func splitSections(rawText string) []sectionSpan {
	locs := sectionPattern.FindAllStringSubmatchIndex(rawText, -1)
	if len(locs) == 0 {
		return nil
	}

	spans := make([]sectionSpan, 0, len(locs))
	for i, loc := range locs {
		name := strings.TrimSpace(rawText[loc[2]:loc[3]])
		bodyStart := loc[1]
		bodyEnd := len(rawText)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}

		spans = append(spans, sectionSpan{
			name:     name,
			body:     rawText[bodyStart:bodyEnd],
			isBundle: strings.Contains(strings.ToUpper(name), BundleMarker),
		})
	}
	return spans
}

// ParseSections splits raw output into named product sections and yields
// offer records. Sections in delimiter order; bundle sections excluded;
// items without a parsable positive price dropped; sections yielding zero
// offers omitted entirely. With no non-bundle delimiters the whole text is
// treated as one implicit section named from fallbackName.
func ParseSections(rawText, fallbackName string) []models.ProductSection {
	spans := splitSections(rawText)

	hasNamed := false
	for _, span := range spans {
		if !span.isBundle {
			hasNamed = true
			break
		}
	}

	if !hasNamed {
		name := strings.TrimSpace(fallbackName)
		if name == "" {
			name = implicitSectionName
		}
		if offers := parseOffers(rawText); len(offers) > 0 {
			return []models.ProductSection{{ProductName: name, Offers: offers}}
		}
		return nil
	}

	var sections []models.ProductSection
	for _, span := range spans {
		if span.isBundle {
			continue
		}
		offers := parseOffers(span.body)
		if len(offers) == 0 {
			continue
		}
		sections = append(sections, models.ProductSection{
			ProductName: span.name,
			Offers:      offers,
		})
	}
	return sections
}

// parseOffers builds one offer per numbered item carrying a parsable
// positive price. Malformed numerics degrade to "no price" and the item
// is dropped; absent optional fields stay empty.
func parseOffers(body string) []models.Offer {
	items := ScanNumberedItems(body)
	if len(items) == 0 {
		return nil
	}

	offers := make([]models.Offer, 0, len(items))
	for _, item := range items {
		price, currency, ok := ExtractPrice(item.Detail)
		if !ok {
			continue
		}

		offer := models.Offer{
			Price:    price,
			Currency: currency,
		}

		header := item.Header
		if tag, clean, ok := ExtractSourceTag(header); ok {
			offer.SourceTag = tag
			header = clean
		}
		if rating, clean, ok := ExtractRating(header); ok {
			offer.Rating = rating
			offer.HasRating = true
			header = clean
		}
		offer.Seller = strings.TrimSpace(header)

		if url, ok := ExtractURL(item.Detail); ok {
			offer.URL = url
		}
		if phone, ok := ExtractContact(item.Detail); ok {
			offer.ContactPhone = phone
		}

		offers = append(offers, offer)
	}

	if len(offers) == 0 {
		return nil
	}
	return offers
}
