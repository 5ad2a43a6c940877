package util

import (
	"regexp"
)

var sessionIDRegex = regexp.MustCompile(`^[0-9a-f]{24}$`)

func IsValidSessionID(s string) bool {
	return sessionIDRegex.MatchString(s)
}

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func IsValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}
