package leaderboard

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// keyChain drops control and format runes then composes to NFC.
// Keys are written one per line so a stray newline would corrupt the stream
var keyChain = sync.Pool{
	New: func() any {
		return transform.Chain(
			runes.Remove(runes.In(unicode.Cc)),
			runes.Remove(runes.In(unicode.Cf)),
			norm.NFC,
		)
	},
}

// NormalizeKey returns the form of key used for grouping and output
func NormalizeKey(key string) string {
	if key == "" {
		return ""
	}
	key = strings.ToValidUTF8(key, "")
	if isPlain(key) {
		return strings.TrimSpace(key)
	}
	tr := keyChain.Get().(transform.Transformer)
	out, _, err := transform.String(tr, key)
	tr.Reset()
	keyChain.Put(tr)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// isPlain is the fast path for printable ASCII keys
func isPlain(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 0x20 || c >= 0x7F {
			return false
		}
	}
	return true
}
