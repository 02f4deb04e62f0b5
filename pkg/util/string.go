package util

import (
	"fmt"
	"unicode/utf8"
)

// Sample cuts s to at most maxLen bytes and notes how much was left out.
func Sample(s string, maxLen int) string {
	return string(SampleBytes([]byte(s), maxLen))
}

// SampleBytes never splits a UTF-8 sequence, so the kept prefix may be shorter than maxLen.
func SampleBytes(data []byte, maxLen int) []byte {
	if len(data) <= maxLen {
		return data
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(data[cut]) {
		cut--
	}
	result := make([]byte, 0, cut+32)
	result = append(result, data[:cut]...)
	return append(result, fmt.Sprintf(" (%d bytes more)", len(data)-cut)...)
}
