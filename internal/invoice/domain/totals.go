package domain

import "math"

// LineTotal computes a line's amount in cents. Quantities multiply
// integer cent prices, so no rounding is involved.
func LineTotal(quantity, unitPriceCents int64) int64 {
	return quantity * unitPriceCents
}

// RoundTax applies a fractional tax rate to a cent amount, rounding
// half away from zero.
func RoundTax(subtotalCents int64, taxRate float64) int64 {
	raw := float64(subtotalCents) * taxRate
	if raw >= 0 {
		return int64(math.Floor(raw + 0.5))
	}
	return int64(math.Ceil(raw - 0.5))
}

// Recalculate rebuilds every derived monetary field on the invoice from
// its items. It is idempotent: running it twice over unchanged inputs
// yields identical results.
//
//	subtotal = Σ line totals
//	tax      = round(subtotal × taxRate)
//	total    = subtotal + tax − discount
//	balance  = total − amountPaid
func Recalculate(invoice *Invoice, items []InvoiceItem) error {
	if invoice == nil {
		return ErrNotFound
	}
	if invoice.TaxRate < 0 {
		return ErrInvalidTaxRate
	}
	if invoice.DiscountCents < 0 {
		return ErrInvalidDiscount
	}

	var subtotal int64
	for _, item := range items {
		subtotal += LineTotal(item.Quantity, item.UnitPriceCents)
	}

	tax := RoundTax(subtotal, invoice.TaxRate)
	if invoice.DiscountCents > subtotal+tax {
		return ErrInvalidDiscount
	}

	invoice.SubtotalCents = subtotal
	invoice.TaxCents = tax
	invoice.TotalCents = subtotal + tax - invoice.DiscountCents
	invoice.BalanceCents = invoice.TotalCents - invoice.AmountPaidCents
	return nil
}

// SettleStatus moves a non-draft, non-cancelled invoice between sent,
// partial and paid based on its payment position.
func SettleStatus(invoice *Invoice) {
	if invoice == nil {
		return
	}
	switch invoice.Status {
	case InvoiceStatusDraft, InvoiceStatusCancelled:
		return
	}
	switch {
	case invoice.AmountPaidCents <= 0:
		invoice.Status = InvoiceStatusSent
	case invoice.BalanceCents <= 0:
		invoice.Status = InvoiceStatusPaid
	default:
		invoice.Status = InvoiceStatusPartial
	}
}
