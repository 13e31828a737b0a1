package models

import "time"

// StoredRecord is the persisted row for a seen listing, keyed by the
// marketplace ad ID. FirstSeen and the snapshot columns are write-once;
// only LastChecked is updated on re-sighting.
type StoredRecord struct {
	AdID           string    `json:"ad_id" gorm:"column:ad_id;primaryKey"`
	Title          string    `json:"title"`
	Price          float64   `json:"price"`
	Location       string    `json:"location"`
	URL            string    `json:"url"`
	PostedAt       time.Time `json:"posted_at"`
	RawDescription string    `json:"raw_description"`

	ModelNumber  string `json:"model_number" gorm:"index"`
	Manufacturer string `json:"manufacturer" gorm:"index"`
	Capacity     string `json:"capacity"`
	Speed        string `json:"speed"`
	Latency      string `json:"latency"`
	Color        string `json:"color"`

	HasOVP            bool `json:"has_ovp"`
	HasInvoice        bool `json:"has_invoice"`
	ShippingAvailable bool `json:"shipping_available"`
	DefectMentioned   bool `json:"defect_mentioned"`

	PriorityScore int `json:"priority_score"`

	FirstSeen   time.Time `json:"first_seen" gorm:"index"`
	LastChecked time.Time `json:"last_checked"`
}

// TableName keeps the table name stable regardless of struct renames.
func (StoredRecord) TableName() string {
	return "listings"
}

// NewStoredRecord snapshots a scored listing at first-seen time.
func NewStoredRecord(l ScoredListing, now time.Time) StoredRecord {
	return StoredRecord{
		AdID:              l.AdID,
		Title:             l.Title,
		Price:             l.Price,
		Location:          l.Location,
		URL:               l.URL,
		PostedAt:          l.PostedAt,
		RawDescription:    l.Description,
		ModelNumber:       l.Spec.ModelNumber,
		Manufacturer:      l.Spec.Manufacturer,
		Capacity:          l.Spec.Capacity,
		Speed:             l.Spec.Speed,
		Latency:           l.Spec.Latency,
		Color:             l.Spec.Color,
		HasOVP:            l.Spec.HasOVP,
		HasInvoice:        l.Spec.HasInvoice,
		ShippingAvailable: l.Spec.ShippingAvailable,
		DefectMentioned:   l.Spec.DefectMentioned,
		PriorityScore:     l.PriorityScore,
		FirstSeen:         now,
		LastChecked:       now,
	}
}

// StoreStats is the aggregate view over the persisted listings.
type StoreStats struct {
	Total         int64            `json:"total"`
	Today         int64            `json:"today"`
	Manufacturers map[string]int64 `json:"manufacturers"`
	PerDay        map[string]int64 `json:"per_day"`
	LastChecked   *time.Time       `json:"last_checked"`
}
