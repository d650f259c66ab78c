package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/shopwise/dealagent/internal/models"
)

// ParseDiscovery extracts a structured recommendation payload from raw
// output. The payload may be the whole text, embedded in surrounding
// prose, or near-JSON needing repair. Tried in order:
//
//  1. parse the whole text as one JSON value
//  2. locate the first brace-balanced substring containing a "products"
//     key and parse that
//  3. repair that substring and parse again
//
// All failing is a recoverable "no structured output" condition, not an
// error: the result is empty with no summary.
func ParseDiscovery(rawText string) models.DiscoveryResult {
	trimmed := strings.TrimSpace(rawText)
	if trimmed == "" {
		return emptyDiscoveryResult()
	}

	if payload, ok := decodePayload(trimmed); ok {
		return normalizePayload(payload)
	}

	if candidate, ok := balancedJSONCandidate(trimmed); ok {
		if payload, ok := decodePayload(candidate); ok {
			return normalizePayload(payload)
		}
		if repaired, err := jsonrepair.JSONRepair(candidate); err == nil {
			if payload, ok := decodePayload(repaired); ok {
				return normalizePayload(payload)
			}
		}
	}

	return emptyDiscoveryResult()
}

func emptyDiscoveryResult() models.DiscoveryResult {
	return models.DiscoveryResult{Products: []models.DiscoveredProduct{}}
}

func decodePayload(text string) (map[string]interface{}, bool) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// balancedJSONCandidate returns the first brace-balanced substring that
// contains a "products" key. Brace depth is tracked with string and
// escape awareness so braces inside JSON strings do not terminate the
// candidate early.
func balancedJSONCandidate(text string) (string, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}

		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			c := text[i]
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				if inString {
					escaped = true
				}
			case '"':
				inString = !inString
			case '{':
				if !inString {
					depth++
				}
			case '}':
				if !inString {
					depth--
					if depth == 0 {
						candidate := text[start : i+1]
						if strings.Contains(candidate, `"products"`) {
							return candidate, true
						}
						i = len(text) // abandon this start
					}
				}
			}
		}
	}
	return "", false
}

// normalizePayload converts the schema-less upstream payload into
// canonical product records. Missing key_specs defaults to an empty
// ordered list; a missing id gets a token generated from the parse
// timestamp and the product's ordinal; numeric fields are accepted only
// when already numeric; unknown fields are ignored, never rejected.
func normalizePayload(payload map[string]interface{}) models.DiscoveryResult {
	result := emptyDiscoveryResult()
	result.SearchSummary = stringField(payload, "search_summary")
	result.NoResultsMessage = stringField(payload, "no_results_message")
	result.CriteriaFeedback = stringField(payload, "criteria_feedback")
	result.Suggestions = stringSliceField(payload, "suggestions")

	rawProducts, _ := payload["products"].([]interface{})
	stamp := time.Now().UnixMilli()

	for ordinal, raw := range rawProducts {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		product := models.DiscoveredProduct{
			ID:          stringField(obj, "id"),
			Name:        stringField(obj, "name"),
			Brand:       stringField(obj, "brand"),
			ModelNumber: stringField(obj, "model_number"),
			Category:    stringField(obj, "category"),
			PriceRange:  stringField(obj, "price_range"),
			Rationale:   stringField(obj, "rationale"),
			Currency:    stringField(obj, "currency"),
			URL:         stringField(obj, "url"),
			KeySpecs:    stringSliceField(obj, "key_specs"),
		}
		if product.ID == "" {
			product.ID = fmt.Sprintf("disc-%d-%d", stamp, ordinal)
		}
		if product.KeySpecs == nil {
			product.KeySpecs = []string{}
		}
		if price, ok := numberField(obj, "price"); ok {
			product.Price = price
			product.HasPrice = true
		}
		if rating, ok := numberField(obj, "rating"); ok {
			product.Rating = rating
			product.HasRating = true
		}

		result.Products = append(result.Products, product)
	}

	return result
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

// numberField accepts only values that are already JSON numbers; string
// coercion is deliberately absent here, unlike the price extractor.
func numberField(obj map[string]interface{}, key string) (float64, bool) {
	f, ok := obj[key].(float64)
	return f, ok
}

func stringSliceField(obj map[string]interface{}, key string) []string {
	raw, ok := obj[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
