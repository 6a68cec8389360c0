package domain

import "strings"

// BarcodeVariants returns the ordered, de-duplicated list of digit-string
// encodings to try against a barcode-keyed provider. Scanners and catalogs
// disagree on zero padding and check-digit conventions, so a scanned code
// is tried raw, zero-padded to 12 and 13 digits, and re-encoded as UPC-A
// and EAN-13 with freshly computed check digits. Pure and deterministic.
func BarcodeVariants(code string) []string {
	digits := onlyDigits(code)
	if digits == "" || len(digits) > 13 {
		return nil
	}

	candidates := []string{
		digits,
		leftPad(digits, 12),
		leftPad(digits, 13),
		upcAVariant(digits),
		ean13Variant(digits),
	}

	seen := make(map[string]bool, len(candidates))
	var variants []string
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		variants = append(variants, c)
	}
	return variants
}

// upcAVariant encodes the code as 12-digit UPC-A: 11 payload digits
// (left-padded or truncated) plus the computed check digit.
func upcAVariant(digits string) string {
	payload := leftPad(digits, 11)
	if len(payload) > 11 {
		payload = payload[:11]
	}
	return payload + string(rune('0'+UPCACheckDigit(payload)))
}

// ean13Variant encodes the code as 13-digit EAN-13: 12 payload digits
// plus the computed check digit.
func ean13Variant(digits string) string {
	payload := leftPad(digits, 12)
	if len(payload) > 12 {
		payload = payload[:12]
	}
	return payload + string(rune('0'+EAN13CheckDigit(payload)))
}

// UPCACheckDigit computes the UPC-A check digit for an 11-digit payload:
// digits in odd positions (1st, 3rd, ...) weigh 3, even positions weigh 1;
// the check digit is the mod-10 complement of the weighted sum.
func UPCACheckDigit(payload string) int {
	sum := 0
	for i, r := range payload {
		d := int(r - '0')
		if i%2 == 0 {
			sum += d * 3
		} else {
			sum += d
		}
	}
	return (10 - sum%10) % 10
}

// EAN13CheckDigit computes the EAN-13 check digit for a 12-digit payload:
// positions alternate weights 1, 3 starting from the first digit.
func EAN13CheckDigit(payload string) int {
	sum := 0
	for i, r := range payload {
		d := int(r - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	return (10 - sum%10) % 10
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
