package services

import (
	"swadhan-eats/internal/models"

	"github.com/shopspring/decimal"
)

// BillingRates are applied on top of the item subtotal.
type BillingRates struct {
	TaxRate     float64
	DeliveryFee float64
}

func money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func lineSubtotal(items []models.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(money(item.Dish.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

// computeBill rounds tax and total to paise. An empty cart carries no delivery fee.
func computeBill(subtotal decimal.Decimal, rates BillingRates) models.BillSummary {
	subtotal = subtotal.Round(2)
	if subtotal.IsZero() {
		return models.BillSummary{}
	}

	tax := subtotal.Mul(money(rates.TaxRate)).Round(2)
	fee := money(rates.DeliveryFee).Round(2)
	total := subtotal.Add(tax).Add(fee).Round(2)

	return models.BillSummary{
		SubTotal:    toFloat(subtotal),
		TaxAmount:   toFloat(tax),
		DeliveryFee: toFloat(fee),
		TotalAmount: toFloat(total),
	}
}

// toPaise converts a rupee amount to the integer minor unit gateways expect.
func toPaise(amount float64) int64 {
	return money(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
