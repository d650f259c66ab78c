package models

// BundleItem is one product inside a store's bundle offer
type BundleItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	URL      string  `json:"url,omitempty"`
}

// Bundle is a store offering several requested products together with a
// combined total. Valid only when TotalPrice > 0.
type Bundle struct {
	StoreName    string       `json:"store_name"`
	Rating       float64      `json:"rating,omitempty"`
	HasRating    bool         `json:"has_rating,omitempty"`
	OfferedCount int          `json:"offered_count"`
	TotalCount   int          `json:"total_count"`
	Items        []BundleItem `json:"items"`
	TotalPrice   float64      `json:"total_price"`
	Currency     string       `json:"currency"`
	ContactPhone string       `json:"contact_phone,omitempty"`
}
