package utils

import (
	"math/rand"
	"strings"
)

var digits = []rune("0123456789")

// GenerateNumericCode returns n random decimal digits, used for passbook numbers.
func GenerateNumericCode(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}

// NormalizeKey lower-cases and trims a lookup key such as a crop name.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func Ptr[T any](v T) *T {
	return &v
}
