package phone

import "regexp"

// E.164: a plus sign followed by up to 15 digits, no leading zero.
var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

func IsValidE164(number string) bool {
	return e164Pattern.MatchString(number)
}
