package services

import (
	"context"
	"fmt"
	"log/slog"

	"storage-service/internal/utils"
)

// ============================================================================
// MSP
// ============================================================================

// DefaultMSPRate applies to crops without a price on record.
const DefaultMSPRate = 20.0

// DefaultMSPRates is the per-kg minimum support price table used when the
// crop_msp table has no row for a crop.
var DefaultMSPRates = map[string]float64{
	"wheat":     20,
	"rice":      18,
	"corn":      15,
	"sugarcane": 25,
	"cotton":    30,
}

func MSPRate(cropType string) float64 {
	if rate, ok := DefaultMSPRates[utils.NormalizeKey(cropType)]; ok {
		return rate
	}
	return DefaultMSPRate
}

func CalculateMSPPayment(quantityKg float64, cropType string) float64 {
	return quantityKg * MSPRate(cropType)
}

// ============================================================================
// FARMER TAX
// ============================================================================

// TaxExemptionLimit: incomes at or below it pay nothing.
const TaxExemptionLimit = 500000.0

type TaxBracket struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
	Rate float64 `json:"rate"`
}

var FarmerTaxBrackets = []TaxBracket{
	{From: 0, To: 250000, Rate: 0},
	{From: 250000, To: 500000, Rate: 0.05},
	{From: 500000, To: 1000000, Rate: 0.20},
}

type TaxSlice struct {
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	Rate   float64 `json:"rate"`
	Amount float64 `json:"amount"`
}

type TaxResult struct {
	Gross     float64    `json:"gross"`
	Tax       float64    `json:"tax"`
	Net       float64    `json:"net"`
	Breakdown []TaxSlice `json:"breakdown"`
}

// CalculateFarmerTax taxes the part of income above TaxExemptionLimit. That
// excess is laid over the non-zero brackets in order, each bracket taking at
// most its own width; whatever remains is taxed at the top rate.
func CalculateFarmerTax(income float64) TaxResult {
	result := TaxResult{Gross: income, Net: income, Breakdown: []TaxSlice{}}
	if income <= TaxExemptionLimit {
		return result
	}

	remaining := income - TaxExemptionLimit
	cursor := TaxExemptionLimit
	topRate := 0.0
	for _, bracket := range FarmerTaxBrackets {
		topRate = bracket.Rate
		if bracket.Rate == 0 || remaining <= 0 {
			continue
		}
		portion := min(remaining, bracket.To-bracket.From)
		result.Breakdown = append(result.Breakdown, TaxSlice{
			From: cursor, To: cursor + portion, Rate: bracket.Rate, Amount: portion * bracket.Rate,
		})
		result.Tax += portion * bracket.Rate
		remaining -= portion
		cursor += portion
	}

	if remaining > 0 {
		result.Breakdown = append(result.Breakdown, TaxSlice{
			From: cursor, To: income, Rate: topRate, Amount: remaining * topRate,
		})
		result.Tax += remaining * topRate
	}

	result.Net = income - result.Tax
	return result
}

// CalculatePaymentTax is the tax a payment of amount adds on top of the
// farmer's declared annual income: the difference between the tax on
// income+amount and the tax on income alone. Gross and Net refer to the
// payment, and Breakdown keeps only the slices the payment falls into.
func CalculatePaymentTax(annualIncome, amount float64) TaxResult {
	income := max(annualIncome, 0)
	total := CalculateFarmerTax(income + amount)
	result := TaxResult{Gross: amount, Net: amount, Breakdown: []TaxSlice{}}

	for _, slice := range total.Breakdown {
		from, to := max(slice.From, income), min(slice.To, income+amount)
		if to <= from {
			continue
		}
		portion := (to - from) * slice.Rate
		result.Breakdown = append(result.Breakdown, TaxSlice{From: from, To: to, Rate: slice.Rate, Amount: portion})
		result.Tax += portion
	}

	result.Net = amount - result.Tax
	return result
}

// ============================================================================
// MARKETPLACE CHARGES
// ============================================================================

const (
	TransportChargeRate = 0.05
	GSTRate             = 0.18
)

type OrderCharges struct {
	BasePrice       float64 `json:"base_price"`
	TransportCharge float64 `json:"transport_charge"`
	GST             float64 `json:"gst"`
	TotalPrice      float64 `json:"total_price"`
}

func CalculateOrderCharges(quantityKg, rate float64) OrderCharges {
	base := quantityKg * rate
	transport := base * TransportChargeRate
	gst := (base + transport) * GSTRate
	return OrderCharges{
		BasePrice:       base,
		TransportCharge: transport,
		GST:             gst,
		TotalPrice:      base + transport + gst,
	}
}

// ============================================================================
// PRICING SERVICE
// ============================================================================

type MSPPriceSource interface {
	GetPrice(ctx context.Context, cropName string) (float64, bool, error)
}

// PricingService resolves MSP rates from the price table, falling back to
// DefaultMSPRates when a crop has no row.
type PricingService struct {
	prices MSPPriceSource
}

func NewPricingService(prices MSPPriceSource) *PricingService {
	return &PricingService{prices: prices}
}

func (s *PricingService) Rate(ctx context.Context, cropType string) (float64, error) {
	if s == nil || s.prices == nil {
		return MSPRate(cropType), nil
	}
	rate, ok, err := s.prices.GetPrice(ctx, cropType)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve msp rate: %w", err)
	}
	if !ok {
		slog.Debug("no msp price on record, using default table", "crop", cropType)
		return MSPRate(cropType), nil
	}
	return rate, nil
}

type MSPQuote struct {
	CropType string  `json:"crop_type"`
	Quantity float64 `json:"quantity"`
	Rate     float64 `json:"rate"`
	Amount   float64 `json:"amount"`
}

func (s *PricingService) Quote(ctx context.Context, quantityKg float64, cropType string) (*MSPQuote, error) {
	rate, err := s.Rate(ctx, cropType)
	if err != nil {
		return nil, err
	}
	return &MSPQuote{
		CropType: utils.NormalizeKey(cropType),
		Quantity: quantityKg,
		Rate:     rate,
		Amount:   quantityKg * rate,
	}, nil
}
