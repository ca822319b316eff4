package models

import (
	"encoding/json"
	"strings"
)

// MissingIdentifier is what the extractor yields when the page carries no
// identifier field. A snapshot holding it is unusable.
const MissingIdentifier = "undefined"

// ProductSnapshot is the structured result of one extraction pass.
// Pointer fields are nil when the page did not provide them.
type ProductSnapshot struct {
	Title       string   `json:"title"`
	ASIN        string   `json:"asin"`
	Image       *string  `json:"image,omitempty"`
	Locale      string   `json:"locale"`
	PrimeOnly   bool     `json:"primeOnly"`
	Abroad      bool     `json:"abroad"`
	ShippingFee string   `json:"shippingFee"`
	Price       *float64 `json:"price,omitempty"`
	StockText   string   `json:"stockText"`
	Stock       *int     `json:"stock,omitempty"`
	Seller      string   `json:"seller"`
}

// IsValid reports whether the identifier resolved to something real
func (p *ProductSnapshot) IsValid() bool {
	return p != nil && !strings.Contains(p.ASIN, MissingIdentifier)
}

// JSON returns the snapshot as the string carried in result messages
func (p *ProductSnapshot) JSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
