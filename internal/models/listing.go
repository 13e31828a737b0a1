package models

import "time"

// RawListing is a single marketplace ad as produced by the fetch transport.
// It is immutable once produced.
type RawListing struct {
	AdID        string    `json:"ad_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Location    string    `json:"location"`
	PostedAt    time.Time `json:"posted_at"`
	URL         string    `json:"url"`
	HasImage    bool      `json:"has_image"`
}

// ExtractedSpec holds the typed attributes extracted from listing text.
// Extraction is best-effort: an empty string means the field was absent,
// which is a normal state, not an error.
type ExtractedSpec struct {
	ModelNumber  string `json:"model_number"`
	Manufacturer string `json:"manufacturer"`
	Capacity     string `json:"capacity"`
	Speed        string `json:"speed"`
	Latency      string `json:"latency"`
	Color        string `json:"color"`

	HasOVP            bool `json:"has_ovp"`
	HasInvoice        bool `json:"has_invoice"`
	ShippingAvailable bool `json:"shipping_available"`
	DefectMentioned   bool `json:"defect_mentioned"`
}

// ScoredListing combines the raw ad, its extracted spec and the priority score.
type ScoredListing struct {
	RawListing
	Spec          ExtractedSpec `json:"spec"`
	PriorityScore int           `json:"priority_score"`
	Qualified     bool          `json:"qualified"`
}

// ReferencePrice is a retail price match from the price-comparison lookup.
type ReferencePrice struct {
	Model string  `json:"model"`
	Price float64 `json:"price"`
	URL   string  `json:"url"`
}
