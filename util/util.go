package util

func IsNumber(b byte) bool {
	return b >= '0' && b <= '9'
}

func IsUnderScore(b byte) bool {
	return b == '_'
}

func IsLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func IsLetterOrUnderscore(b byte) bool {
	return IsLetter(b) || IsUnderScore(b)
}

func IsLetterOrUnderscoreOrNumber(b byte) bool {
	return IsLetter(b) || IsUnderScore(b) || IsNumber(b)
}

// IsIdentifier reports whether s is a non-empty run of letters, digits and underscores
// that does not start with a digit.
func IsIdentifier(s string) bool {
	if len(s) == 0 || !IsLetterOrUnderscore(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !IsLetterOrUnderscoreOrNumber(s[i]) {
			return false
		}
	}
	return true
}

// StripDelimiters removes the first and last character of a quoted literal.
// Strings shorter than two characters come back unchanged.
func StripDelimiters(s string) string {
	if len(s) < 2 {
		return s
	}
	return s[1 : len(s)-1]
}
