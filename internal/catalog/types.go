// Package catalog implements the product catalog: a single JSON document of
// marble entries persisted wholesale on every mutation.
package catalog

import (
	"time"
)

// Rarity classifies how scarce a marble is.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// SellingStatus is the storefront badge shown for an entry.
type SellingStatus string

const (
	StatusSellingFast SellingStatus = "Selling Fast"
	StatusBestSeller  SellingStatus = "Best Seller"
	StatusOutOfStock  SellingStatus = "Out of Stock"
	StatusNewArrival  SellingStatus = "New Arrival"
)

// Marble is one catalog entry. Free-text fields are sanitized on write;
// ID and CreatedAt are immutable for the entry's lifetime.
type Marble struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Color        string        `json:"color"`
	PriceContact string        `json:"priceContact,omitempty"`
	Origin       string        `json:"origin"`
	Description  string        `json:"description,omitempty"`
	Image        string        `json:"image,omitempty"`
	Images       []string      `json:"images,omitempty"`
	Size         string        `json:"size,omitempty"`
	Rarity       Rarity        `json:"rarity,omitempty"`
	Category     string        `json:"category,omitempty"`
	Patterns     []string      `json:"patterns,omitempty"`
	Material     string        `json:"material,omitempty"`
	Finish       string        `json:"finish,omitempty"`
	Status       SellingStatus `json:"sellingStatus,omitempty"`
	IsFeatured   bool          `json:"isFeatured,omitempty"`
	CreatedAt    string        `json:"createdAt,omitempty"`
	UpdatedAt    string        `json:"updatedAt,omitempty"`
	// Media-host identifiers used for best-effort cleanup on delete.
	PublicID  string   `json:"publicId,omitempty"`
	PublicIDs []string `json:"publicIds,omitempty"`
}

// MediaPublicIDs collects every media-host identifier attached to the entry.
func (m *Marble) MediaPublicIDs() []string {
	var ids []string
	if m.PublicID != "" {
		ids = append(ids, m.PublicID)
	}
	for _, id := range m.PublicIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// timestamp formats a time the way the catalog document stores it.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
