package services

import "unicode"

const maxNameLength = 50

// IsNameValid checks a display name. The reason is human-readable and is
// meant to be appended to an error message shown to the user.
func IsNameValid(name string) (bool, string) {
	if name == "" {
		return false, "cannot be empty"
	}
	if len([]rune(name)) > maxNameLength {
		return false, "cannot be longer than 50 characters"
	}
	for _, c := range name {
		if !unicode.IsLetter(c) && !unicode.IsSpace(c) {
			return false, "can only contain letters and spaces"
		}
	}
	return true, ""
}
