package irc

import "strings"

const maxNicknameLength = 9

// isValidNickname reports whether nick satisfies the registration
// charset rules: letters, digits and a small symbol set, first
// character not a digit, at most nine characters.
func isValidNickname(nick string) bool {
	if len(nick) < 1 || len(nick) > maxNicknameLength {
		return false
	}

	for i, ch := range nick {
		if i == 0 && ch >= '0' && ch <= '9' {
			return false
		}

		if !((ch >= 'A' && ch <= 'Z') ||
			(ch >= 'a' && ch <= 'z') ||
			(ch >= '0' && ch <= '9') ||
			strings.ContainsRune("-_[]{}|\\", ch)) {
			return false
		}
	}

	return true
}

// isValidChannelName reports whether name carries the channel sigil and
// none of the characters the wire format reserves.
func isValidChannelName(name string) bool {
	if len(name) < 2 {
		return false
	}

	if name[0] != '#' && name[0] != '&' {
		return false
	}

	if strings.ContainsAny(name, " ,:\x00\x07") {
		return false
	}

	return true
}
