// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when the caller does not supply one.
const DefaultRegion = "BR"

// NormalizeE164 formats a phone number to E.164 using region for numbers without a
// country code. If parsing fails, it returns the trimmed input.
func NormalizeE164(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}
	if region == "" {
		region = DefaultRegion
	}

	number, err := phonenumbers.Parse(trimmed, strings.ToUpper(region))
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// FromJID extracts and normalizes the phone number from a WhatsApp JID such as
// "5511999998888@s.whatsapp.net" or "5511999998888:12@s.whatsapp.net".
// WhatsApp JIDs always carry the country code, so the number is parsed with a leading plus.
func FromJID(jid, region string) string {
	user := strings.TrimSpace(jid)
	if at := strings.IndexByte(user, '@'); at >= 0 {
		user = user[:at]
	}
	if colon := strings.IndexByte(user, ':'); colon >= 0 {
		user = user[:colon]
	}
	if user == "" {
		return ""
	}
	if !strings.HasPrefix(user, "+") {
		user = "+" + user
	}
	return NormalizeE164(user, region)
}

// ToJIDUser strips the plus sign so the number can be used as a WhatsApp recipient.
func ToJIDUser(e164 string) string {
	return strings.TrimPrefix(strings.TrimSpace(e164), "+")
}
