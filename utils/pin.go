package utils

// ValidateSubscriberPIN checks whether a string looks like a metadata
// provider subscriber PIN: 4 to 16 alphanumeric characters.
func ValidateSubscriberPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 16 {
		return false
	}

	for _, char := range pin {
		switch {
		case char >= '0' && char <= '9':
		case char >= 'a' && char <= 'z':
		case char >= 'A' && char <= 'Z':
		default:
			return false
		}
	}

	return true
}
