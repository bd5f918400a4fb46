package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateDimensions_Operational(t *testing.T) {
	items := []OrderItem{
		{SKU: "A", Quantity: 1, Length: 7, Width: 4, Height: 4, Weight: 0.25},
		{SKU: "B", Quantity: 2, Length: 10, Width: 3, Height: 2, Weight: 1.0},
	}

	d := AggregateDimensions(items, RateTypeOperational, nil)

	assert.InDelta(t, 10.0, d.Length, 0.001) // max across items
	assert.InDelta(t, 4.0, d.Width, 0.001)   // max across items
	assert.InDelta(t, 8.0, d.Height, 0.001)  // 4 + 2*2
	assert.InDelta(t, 2.25, d.Weight, 0.001) // 0.25 + 2*1.0
}

func TestAggregateDimensions_OperationalFallsBackToOriginal(t *testing.T) {
	items := []OrderItem{
		{
			SKU: "A", Quantity: 1,
			Length: 0, Width: 5, Height: 0, Weight: 0,
			OriginalLength: 12, OriginalWidth: 9, OriginalHeight: 3, OriginalWeight: 1.5,
		},
	}

	d := AggregateDimensions(items, RateTypeOperational, nil)

	assert.InDelta(t, 12.0, d.Length, 0.001)
	assert.InDelta(t, 5.0, d.Width, 0.001) // live value wins when set
	assert.InDelta(t, 3.0, d.Height, 0.001)
	assert.InDelta(t, 1.5, d.Weight, 0.001)
}

func TestAggregateDimensions_DeclaredUsesLookupWhenUnset(t *testing.T) {
	items := []OrderItem{
		{SKU: "CAB-100", Quantity: 1},
		{SKU: "CAB-200", Quantity: 1, LengthD: 8, WidthD: 6, HeightD: 2, WeightD: 1.5},
	}
	lookup := func(sku string) *DimensionData {
		if sku == "CAB-100" {
			return &DimensionData{SKU: sku, Length: 6, Width: 4, Height: 1, Weight: 0.5}
		}
		return nil
	}

	d := AggregateDimensions(items, RateTypeDeclared, lookup)

	assert.InDelta(t, 8.0, d.Length, 0.001)
	assert.InDelta(t, 6.0, d.Width, 0.001)
	assert.InDelta(t, 3.0, d.Height, 0.001)  // 1 + 2
	assert.InDelta(t, 2.0, d.Weight, 0.001)  // 0.5 + 1.5
}

func TestAggregateDimensions_ZeroQuantityCountsAsOne(t *testing.T) {
	items := []OrderItem{
		{SKU: "A", Quantity: 0, Length: 7, Width: 4, Height: 4, Weight: 0.25},
	}

	d := AggregateDimensions(items, RateTypeOperational, nil)

	assert.InDelta(t, 4.0, d.Height, 0.001)
	assert.InDelta(t, 0.25, d.Weight, 0.001)
}

func TestDimensionsValid(t *testing.T) {
	assert.True(t, Dimensions{Length: 1, Width: 1, Height: 1, Weight: 0.1}.Valid())
	assert.False(t, Dimensions{Length: 0, Width: 1, Height: 1, Weight: 0.1}.Valid())
	assert.False(t, Dimensions{Length: 1, Width: 1, Height: 1, Weight: 0}.Valid())
	assert.False(t, Dimensions{}.Valid())
}

func TestAddressHasEssentials(t *testing.T) {
	assert.True(t, Address{Zip: "75201"}.HasEssentials())
	assert.True(t, Address{City: "Dallas", State: "TX"}.HasEssentials())
	assert.False(t, Address{City: "Dallas"}.HasEssentials())
	assert.False(t, Address{Street1: "123 Main St"}.HasEssentials())
}

func TestRateTypeValid(t *testing.T) {
	assert.True(t, RateTypeOperational.Valid())
	assert.True(t, RateTypeDeclared.Valid())
	assert.False(t, RateType("").Valid())
	assert.False(t, RateType("X").Valid())
}
