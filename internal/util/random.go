// Package util provides utility functions for the BioFlow client.
package util

import (
	"math/rand"
	"strings"
)

// TokenLength is the length of a generated device token.
const TokenLength = 11

const base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateRandomBase36 generates a random lowercase base-36 string of the specified length.
// Uses math/rand (auto-seeded); the result is not suitable for credentials.
func GenerateRandomBase36(length int) string {
	if length <= 0 {
		return ""
	}

	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(base36Chars[rand.Intn(len(base36Chars))])
	}

	return builder.String()
}

// GenerateToken generates the device-local pairing token sent to the plan service.
func GenerateToken() string {
	return GenerateRandomBase36(TokenLength)
}
