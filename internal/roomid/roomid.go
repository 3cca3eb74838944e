// Package roomid generates memorable room ids such as
// "plucky-teal-otter-harbor".
package roomid

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

const maxLen = 64

var validID = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// New returns a random four-word id.
func New() string {
	lists := [][]string{adjectives, colors, animals, places}
	words := make([]string, len(lists))
	for i, list := range lists {
		words[i] = list[randomIndex(len(list))]
	}
	return strings.Join(words, "-")
}

// NewUnique keeps generating until taken reports false.
func NewUnique(taken func(string) bool) string {
	for {
		id := New()
		if taken == nil || !taken(id) {
			return id
		}
	}
}

// Valid reports whether id is a plausible room id: lowercase letters,
// digits, dashes and underscores.
func Valid(id string) bool {
	return len(id) <= maxLen && validID.MatchString(id)
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic("roomid: crypto/rand failed: " + err.Error())
	}
	return int(n.Int64())
}
