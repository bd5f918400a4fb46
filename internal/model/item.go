package model

// OrderItem is one SKU line of an order. It carries two independently edited
// dimension sets: the operational ("O") set used for day-to-day rating, and
// the declared ("D") set used when a shipment's billed dimensions are
// disputed. The original_* fields snapshot the O dimensions as first entered
// so later edits never lose the ingested values.
type OrderItem struct {
	ID       int64  `json:"id"`
	OrderID  int64  `json:"order_id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`

	// O regime, inches and pounds.
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
	Weight float64 `json:"weight"`

	// Snapshot of the O dimensions at first entry; backfilled once, never
	// overwritten.
	OriginalHeight float64 `json:"original_height,omitempty"`
	OriginalWidth  float64 `json:"original_width,omitempty"`
	OriginalLength float64 `json:"original_length,omitempty"`
	OriginalWeight float64 `json:"original_weight,omitempty"`

	// D regime. Zero means unset; the SKU master-data lookup fills the gap.
	HeightD float64 `json:"height_d,omitempty"`
	WidthD  float64 `json:"width_d,omitempty"`
	LengthD float64 `json:"length_d,omitempty"`
	WeightD float64 `json:"weight_d,omitempty"`
}

// DimensionData is the SKU master-data record used as the fallback for unset
// declared dimensions.
type DimensionData struct {
	SKU    string  `json:"sku"`
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
	Weight float64 `json:"weight"`
}

// Dimensions is one package dimension set, inches and pounds.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`
}

// Valid reports whether every dimension is strictly positive.
func (d Dimensions) Valid() bool {
	return d.Length > 0 && d.Width > 0 && d.Height > 0 && d.Weight > 0
}

// DimensionLookup resolves SKU master-data dimensions for the D-regime
// fallback. A nil result means no record exists for the SKU.
type DimensionLookup func(sku string) *DimensionData

// operational returns the item's O dimensions, falling back per field to the
// original_* snapshot when the live value was cleared.
func (it OrderItem) operational() Dimensions {
	d := Dimensions{Length: it.Length, Width: it.Width, Height: it.Height, Weight: it.Weight}
	if d.Length <= 0 {
		d.Length = it.OriginalLength
	}
	if d.Width <= 0 {
		d.Width = it.OriginalWidth
	}
	if d.Height <= 0 {
		d.Height = it.OriginalHeight
	}
	if d.Weight <= 0 {
		d.Weight = it.OriginalWeight
	}
	return d
}

// declared returns the item's D dimensions, falling back per field to the SKU
// master-data record when unset.
func (it OrderItem) declared(lookup DimensionLookup) Dimensions {
	d := Dimensions{Length: it.LengthD, Width: it.WidthD, Height: it.HeightD, Weight: it.WeightD}
	if d.Valid() || lookup == nil {
		return d
	}
	dd := lookup(it.SKU)
	if dd == nil {
		return d
	}
	if d.Length <= 0 {
		d.Length = dd.Length
	}
	if d.Width <= 0 {
		d.Width = dd.Width
	}
	if d.Height <= 0 {
		d.Height = dd.Height
	}
	if d.Weight <= 0 {
		d.Weight = dd.Weight
	}
	return d
}

// AggregateDimensions sums one dimension regime across an order's items into
// the single package used to build a rate request. Weight and height are
// summed per unit quantity; length and width take the per-item maximum, which
// matches how multi-item orders are boxed on the floor.
func AggregateDimensions(items []OrderItem, regime RateType, lookup DimensionLookup) Dimensions {
	var agg Dimensions
	for _, it := range items {
		var d Dimensions
		if regime == RateTypeDeclared {
			d = it.declared(lookup)
		} else {
			d = it.operational()
		}
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		agg.Height += d.Height * float64(qty)
		agg.Weight += d.Weight * float64(qty)
		if d.Length > agg.Length {
			agg.Length = d.Length
		}
		if d.Width > agg.Width {
			agg.Width = d.Width
		}
	}
	return agg
}
