package provider

import "strconv"

// FormatAmount renders an amount as a fixed two-decimal string, the
// representation İyzico, Paymes and BKM Express sign and send.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// FormatRawAmount renders an amount with its natural precision. NestPay and
// Get724 pass the raw decimal on the redirect form.
func FormatRawAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// AmountToMinorUnits converts an amount to integer minor units (kuruş for
// TRY), the representation PayTR signs and sends.
func AmountToMinorUnits(amount float64) int64 {
	return int64(amount * 100)
}

// CurrencyNumericCode translates an ISO 4217 alpha code to its numeric code
// as required by the NestPay and Get724 protocols. Unknown codes fall back to
// 949 (TRY).
func CurrencyNumericCode(currency string) string {
	switch currency {
	case "TRY", "TL", "":
		return "949"
	case "USD":
		return "840"
	case "EUR":
		return "978"
	case "GBP":
		return "826"
	default:
		return "949"
	}
}
