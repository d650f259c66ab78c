package models

// Offer is a single seller's priced listing for a product, extracted from
// the agent's text output. Immutable after creation except for the contact
// resolver backfilling ContactPhone.
type Offer struct {
	Seller       string  `json:"seller"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	Rating       float64 `json:"rating,omitempty"` // 0-5, one decimal
	HasRating    bool    `json:"has_rating,omitempty"`
	URL          string  `json:"url,omitempty"`
	ContactPhone string  `json:"contact_phone,omitempty"`
	SourceTag    string  `json:"source_tag,omitempty"`
}

// ProductSection groups the offers parsed for one named product section.
// Section order equals first-appearance order in the source text.
type ProductSection struct {
	ProductName string  `json:"product_name"`
	Offers      []Offer `json:"offers"`
}
