package validate

import (
	"math"
	"regexp"
	"strings"
)

// Bounds for admin product input.
const (
	MinProductNameLen = 2
	MaxProductNameLen = 100
	MaxDescriptionLen = 500
	MaxPriceAgorot    = 1000000 * 100
)

var (
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobileRe   = regexp.MustCompile(`^05[0-9]{8}$`)
	landlineRe = regexp.MustCompile(`^0[2-489][0-9]{7,8}$`)
	skuRe      = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	nonDigitRe = regexp.MustCompile(`[^0-9]`)
	scriptRe   = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	tagRe      = regexp.MustCompile(`<[^>]+>`)
)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidPhone accepts Israeli phone numbers: mobile numbers are 10 digits
// starting with 05, landlines are 9-10 digits starting with 02/03/04/08/09.
// Separators and other non-digits are stripped before matching.
func IsValidPhone(phone string) bool {
	cleaned := nonDigitRe.ReplaceAllString(phone, "")
	return mobileRe.MatchString(cleaned) || landlineRe.MatchString(cleaned)
}

// FormatPhone groups a phone number for display: 05X-XXX-XXXX for mobiles,
// 0X-XXX-XXXX for landlines. Unrecognized input is returned as-is.
func FormatPhone(phone string) string {
	cleaned := nonDigitRe.ReplaceAllString(phone, "")

	switch {
	case len(cleaned) == 10 && strings.HasPrefix(cleaned, "05"):
		return cleaned[:3] + "-" + cleaned[3:6] + "-" + cleaned[6:]
	case len(cleaned) == 9 && strings.HasPrefix(cleaned, "0"):
		return cleaned[:2] + "-" + cleaned[2:5] + "-" + cleaned[5:]
	}
	return phone
}

// IsValidPrice reports whether a price in major units is a usable
// non-negative number.
func IsValidPrice(price float64) bool {
	return !math.IsNaN(price) && price >= 0
}

// IsValidSKU accepts alphanumeric SKUs with optional dashes.
func IsValidSKU(sku string) bool {
	return skuRe.MatchString(sku)
}

// SanitizeText trims whitespace and strips script blocks and HTML tags.
func SanitizeText(text string) string {
	s := strings.TrimSpace(text)
	s = scriptRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	return s
}

// RequiredFields returns whether every required field is non-empty,
// and the names of the missing ones.
func RequiredFields(data map[string]string, required []string) (bool, []string) {
	var missing []string
	for _, field := range required {
		if data[field] == "" {
			missing = append(missing, field)
		}
	}
	return len(missing) == 0, missing
}
