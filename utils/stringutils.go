package utils

import (
	"math/rand"
	"unicode"
)

func IsBlank(str string) bool {
	if str == "" {
		return true
	}

	for _, c := range str {
		if !unicode.IsSpace(c) {
			return false
		}
	}
	return true
}

const hexStringLetters = "abcdef0123456789"

func RandHexString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = hexStringLetters[rand.Intn(len(hexStringLetters))]
	}
	return string(b)
}
