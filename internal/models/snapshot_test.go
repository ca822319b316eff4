package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductSnapshot_IsValid(t *testing.T) {
	assert.True(t, (&ProductSnapshot{ASIN: "B08N5WRWNW"}).IsValid())
	assert.False(t, (&ProductSnapshot{ASIN: MissingIdentifier}).IsValid())
	assert.False(t, (*ProductSnapshot)(nil).IsValid())
}

func TestProductSnapshot_JSONUsesWireNames(t *testing.T) {
	price := 1299.9
	stock := 3
	snapshot := &ProductSnapshot{
		Title:     "Kindle",
		ASIN:      "B08N5WRWNW",
		Locale:    ".com.tr",
		PrimeOnly: true,
		Price:     &price,
		StockText: "Stokta sadece 3 adet kaldı",
		Stock:     &stock,
		Seller:    "Amazon.com.tr",
	}

	data, err := snapshot.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"title":"Kindle","asin":"B08N5WRWNW","locale":".com.tr","primeOnly":true,"abroad":false,
		"shippingFee":"","price":1299.9,"stockText":"Stokta sadece 3 adet kaldı","stock":3,"seller":"Amazon.com.tr"
	}`, data)
}
