package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var e164Regex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

func ValidateE164(phone string) error {
	if phone == "" {
		return fmt.Errorf("phone number is required")
	}

	phone = strings.TrimSpace(phone)

	if !e164Regex.MatchString(phone) {
		return fmt.Errorf("phone number must be in E.164 format (e.g., +33612345678)")
	}

	return nil
}

// NormalizeE164 strips formatting characters and validates the result. A
// number without a leading plus is accepted when it otherwise forms a valid
// international number.
func NormalizeE164(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(phone)

	if strings.HasPrefix(phone, "00") {
		phone = "+" + phone[2:]
	} else if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	if err := ValidateE164(phone); err != nil {
		return "", fmt.Errorf("cannot normalize phone number: %w", err)
	}

	return phone, nil
}
