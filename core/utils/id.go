package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// GenerateMeetingCode returns a Meet-style code: three groups of four
// lowercase letters, e.g. "abcd-efgh-ijkl".
func GenerateMeetingCode() string {
	group := func() string {
		g, err := gonanoid.Generate("abcdefghijklmnopqrstuvwxyz", 4)
		if err != nil {
			return "meet"
		}
		return g
	}
	return group() + "-" + group() + "-" + group()
}
