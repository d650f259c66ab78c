package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDiscovery_PureJSON(t *testing.T) {
	raw := `{
		"products": [
			{
				"id": "p-1",
				"name": "Soundbar X100",
				"brand": "Acme",
				"category": "audio",
				"key_specs": ["300W", "Dolby Atmos"],
				"price": 1200,
				"currency": "ILS",
				"rating": 4.3,
				"rationale": "Best value in range"
			}
		],
		"search_summary": "Found 1 matching product",
		"suggestions": ["consider larger rooms"]
	}`

	result := ParseDiscovery(raw)
	require.Len(t, result.Products, 1)

	p := result.Products[0]
	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, "Soundbar X100", p.Name)
	assert.Equal(t, "Acme", p.Brand)
	assert.Equal(t, []string{"300W", "Dolby Atmos"}, p.KeySpecs)
	assert.True(t, p.HasPrice)
	assert.Equal(t, 1200.0, p.Price)
	assert.True(t, p.HasRating)
	assert.Equal(t, 4.3, p.Rating)

	assert.Equal(t, "Found 1 matching product", result.SearchSummary)
	assert.Equal(t, []string{"consider larger rooms"}, result.Suggestions)
}

func TestParseDiscovery_EmbeddedInProse(t *testing.T) {
	raw := `Here is what I found for you:

{"products": [{"name": "Robot Vacuum", "category": "home"}], "search_summary": "one hit"}

Let me know if you need more.`

	result := ParseDiscovery(raw)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "Robot Vacuum", result.Products[0].Name)
	assert.Equal(t, "one hit", result.SearchSummary)
}

func TestParseDiscovery_GeneratedIDs(t *testing.T) {
	raw := `{"products": [{"name": "A"}, {"name": "B"}]}`

	result := ParseDiscovery(raw)
	require.Len(t, result.Products, 2)

	for i, p := range result.Products {
		assert.True(t, strings.HasPrefix(p.ID, "disc-"), "id %q", p.ID)
		assert.True(t, strings.HasSuffix(p.ID, fmt.Sprintf("-%d", i)), "id %q", p.ID)
	}
	assert.NotEqual(t, result.Products[0].ID, result.Products[1].ID)
}

func TestParseDiscovery_RepairedJSON(t *testing.T) {
	// trailing comma and single quotes need repair
	raw := `Result: {"products": [{'name': 'Kettle', 'category': 'kitchen'},]}`

	result := ParseDiscovery(raw)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "Kettle", result.Products[0].Name)
}

func TestParseDiscovery_StringNumbersNotCoerced(t *testing.T) {
	raw := `{"products": [{"name": "TV", "price": "1200", "rating": "4.5"}]}`

	result := ParseDiscovery(raw)
	require.Len(t, result.Products, 1)
	assert.False(t, result.Products[0].HasPrice)
	assert.False(t, result.Products[0].HasRating)
}

func TestParseDiscovery_NoStructuredOutput(t *testing.T) {
	for _, raw := range []string{
		"",
		"Sorry, I could not find anything matching your criteria.",
		`{"unrelated": true}`,
	} {
		result := ParseDiscovery(raw)
		assert.NotNil(t, result.Products)
		assert.Empty(t, result.Products)
		assert.Empty(t, result.SearchSummary)
	}
}

func TestParseDiscovery_KeySpecsDefaultEmpty(t *testing.T) {
	result := ParseDiscovery(`{"products": [{"name": "Mouse"}]}`)
	require.Len(t, result.Products, 1)
	assert.NotNil(t, result.Products[0].KeySpecs)
	assert.Empty(t, result.Products[0].KeySpecs)
}

func TestParseDiscovery_BracesInsideStrings(t *testing.T) {
	raw := `note {not json} then {"products": [{"name": "Desk {standing}", "category": "office"}]}`

	result := ParseDiscovery(raw)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "Desk {standing}", result.Products[0].Name)
}
