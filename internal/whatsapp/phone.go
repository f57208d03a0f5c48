package whatsapp

import "strings"

// NormalizePhone reduces a phone number to the digits-only form the Cloud
// API expects in the "to" field. Formatting characters and a leading plus
// are stripped; the result is also the canonical key contacts are stored
// under, so normalizing twice yields the same value.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
