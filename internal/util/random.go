// Package util provides shared helpers for the dialog engine.
package util

import (
	"math/rand/v2"
	"strings"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified
// length, using math/rand/v2 for non-cryptographic purposes.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateLeadID generates a unique lead ID with "lead_" prefix.
func GenerateLeadID() string {
	return GenerateRandomID("lead_", 32)
}

// GenerateAgentID generates a unique agent ID with "ag_" prefix.
func GenerateAgentID() string {
	return GenerateRandomID("ag_", 16)
}
