package models

// DiscoveredProduct is one canonical product record extracted from a
// discovery payload. Id is generated when the payload omits it.
type DiscoveredProduct struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Brand       string   `json:"brand,omitempty"`
	ModelNumber string   `json:"model_number,omitempty"`
	Category    string   `json:"category"`
	KeySpecs    []string `json:"key_specs"`
	PriceRange  string   `json:"price_range,omitempty"`
	Rationale   string   `json:"rationale"`
	Price       float64  `json:"price,omitempty"`
	HasPrice    bool     `json:"has_price,omitempty"`
	Currency    string   `json:"currency,omitempty"`
	URL         string   `json:"url,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	HasRating   bool     `json:"has_rating,omitempty"`
}

// DiscoveryResult is the normalized recommendation payload of one
// discovery task.
type DiscoveryResult struct {
	Products         []DiscoveredProduct `json:"products"`
	SearchSummary    string              `json:"search_summary,omitempty"`
	NoResultsMessage string              `json:"no_results_message,omitempty"`
	Suggestions      []string            `json:"suggestions,omitempty"`
	CriteriaFeedback string              `json:"criteria_feedback,omitempty"`
}
