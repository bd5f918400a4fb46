package rates

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
	"github.com/5CORE-ALL/ship-hub-sub001/pkg/fedex"
	"github.com/5CORE-ALL/ship-hub-sub001/pkg/shippo"
	"github.com/5CORE-ALL/ship-hub-sub001/pkg/shipstation"
	"github.com/5CORE-ALL/ship-hub-sub001/pkg/ups"
)

var testReq = model.RateRequest{
	From: model.Address{City: "Dallas", State: "TX", Zip: "75001", Country: "US"},
	To:   model.Address{City: "Reno", State: "NV", Zip: "89501", Country: "US"},
	Dims: model.Dimensions{Length: 10, Width: 8, Height: 4, Weight: 2.5},
}

type fakeUPS struct {
	rates []ups.Rate
	err   error
}

func (f *fakeUPS) ShopRates(_ context.Context, _ ups.Shipment) ([]ups.Rate, error) {
	return f.rates, f.err
}

func TestUPSAdapter(t *testing.T) {
	a := NewUPSAdapter(&fakeUPS{rates: []ups.Rate{
		{ServiceCode: "03", ServiceName: "UPS Ground", TotalCharges: "11.40", Currency: "USD"},
		{ServiceCode: "02", ServiceName: "", TotalCharges: "24.10", Currency: "USD"},
		{ServiceCode: "01", ServiceName: "UPS Next Day Air", TotalCharges: "not-a-price", Currency: "USD"},
	}})

	quotes, err := a.FetchQuotes(context.Background(), testReq)
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, "UPS", quotes[0].Carrier)
	assert.Equal(t, "UPS Ground", quotes[0].Service)
	assert.True(t, quotes[0].Price.Equal(decimal.RequireFromString("11.40")))
	assert.Equal(t, "ups", quotes[0].Source)
	assert.Empty(t, quotes[0].RateID)

	// Missing name falls back to the service code table.
	assert.Equal(t, ups.ServiceName("02"), quotes[1].Service)
}

type fakeFedEx struct {
	rates []fedex.Rate
}

func (f *fakeFedEx) RateQuotes(_ context.Context, _ fedex.Shipment) ([]fedex.Rate, error) {
	return f.rates, nil
}

func TestFedExAdapter(t *testing.T) {
	a := NewFedExAdapter(&fakeFedEx{rates: []fedex.Rate{
		{ServiceType: "FEDEX_GROUND", ServiceName: "FedEx Ground", TotalCharge: 12.47, Currency: "USD"},
	}})

	quotes, err := a.FetchQuotes(context.Background(), testReq)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "FedEx", quotes[0].Carrier)
	assert.Equal(t, "fedex", quotes[0].Source)
	assert.True(t, quotes[0].Price.Equal(decimal.NewFromFloat(12.47)))
}

type fakeShippo struct {
	rates []shippo.Rate
}

func (f *fakeShippo) CreateShipment(_ context.Context, _ shippo.Shipment) ([]shippo.Rate, error) {
	return f.rates, nil
}

func TestShippoAdapterCarrierVaries(t *testing.T) {
	a := NewShippoAdapter(&fakeShippo{rates: []shippo.Rate{
		{ObjectID: "rate-usps", Provider: "USPS", ServiceLevel: "Priority Mail", Amount: "7.33", Currency: "USD"},
		{ObjectID: "rate-ups", Provider: "UPS", ServiceLevel: "Ground", Amount: "11.20", Currency: "USD"},
	}})

	quotes, err := a.FetchQuotes(context.Background(), testReq)
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	// Aggregator: source stays shippo while carrier tracks the provider.
	assert.Equal(t, "USPS", quotes[0].Carrier)
	assert.Equal(t, "shippo", quotes[0].Source)
	assert.Equal(t, "rate-usps", quotes[0].RateID)
	assert.Equal(t, "UPS", quotes[1].Carrier)
	assert.Equal(t, "shippo", quotes[1].Source)
}

type fakeShipStation struct {
	perCode map[string][]shipstation.Rate
	errs    map[string]error
	calls   []string
}

func (f *fakeShipStation) GetRates(_ context.Context, carrierCode string, _ shipstation.Shipment) ([]shipstation.Rate, error) {
	f.calls = append(f.calls, carrierCode)
	if err := f.errs[carrierCode]; err != nil {
		return nil, err
	}
	return f.perCode[carrierCode], nil
}

func TestShipStationAdapterMergesCarrierCodes(t *testing.T) {
	fake := &fakeShipStation{
		perCode: map[string][]shipstation.Rate{
			"stamps_com": {{ServiceName: "USPS Priority Mail", ServiceCode: "usps_priority_mail", ShipmentCost: 7.01, OtherCost: 0.32}},
			"fedex":      {{ServiceName: "FedEx Home Delivery", ServiceCode: "fedex_home_delivery", ShipmentCost: 12.47}},
		},
		errs: map[string]error{"ups_walleted": eris.New("429 from upstream")},
	}
	a := NewShipStationAdapter(fake, []string{"stamps_com", "fedex", "ups_walleted"})

	quotes, err := a.FetchQuotes(context.Background(), testReq)
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, "USPS", quotes[0].Carrier)
	assert.True(t, quotes[0].Price.Equal(decimal.NewFromFloat(7.33)))
	assert.Equal(t, "FedEx", quotes[1].Carrier)
	assert.Equal(t, "shipstation", quotes[1].Source)
	assert.Equal(t, []string{"stamps_com", "fedex", "ups_walleted"}, fake.calls)
}

func TestShipStationAdapterAllCodesFail(t *testing.T) {
	fake := &fakeShipStation{errs: map[string]error{"stamps_com": eris.New("boom")}}
	a := NewShipStationAdapter(fake, []string{"stamps_com"})

	_, err := a.FetchQuotes(context.Background(), testReq)
	require.Error(t, err)
}

func TestCarrierForCode(t *testing.T) {
	assert.Equal(t, "USPS", carrierForCode("stamps_com"))
	assert.Equal(t, "UPS", carrierForCode("ups_walleted"))
	assert.Equal(t, "FedEx", carrierForCode("fedex"))
	assert.Equal(t, "DHL", carrierForCode("dhl_express"))
	assert.Equal(t, "ontrac", carrierForCode("ontrac"))
}
