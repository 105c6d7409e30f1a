package natskv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/types"
)

// KV keys may only contain [-/_=.a-zA-Z0-9] and use "." as the token
// separator, so every path segment is escaped before joining. Bytes outside
// [-_a-zA-Z0-9] become "=XX" with XX the uppercase hex value.

func isPlain(c byte) bool {
	return c == '-' || c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func escapeSegment(seg string) string {
	var b strings.Builder
	b.Grow(len(seg))
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if isPlain(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "=%02X", c)
	}

	return b.String()
}

func unescapeSegment(tok string) (string, error) {
	if !strings.Contains(tok, "=") {
		return tok, nil
	}

	var b strings.Builder
	for i := 0; i < len(tok); i++ {
		if tok[i] != '=' {
			b.WriteByte(tok[i])
			continue
		}
		if i+2 >= len(tok) {
			return "", fmt.Errorf("%w: truncated escape in key token %q", types.ErrInvalidPath, tok)
		}
		v, err := strconv.ParseUint(tok[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("%w: bad escape in key token %q", types.ErrInvalidPath, tok)
		}
		b.WriteByte(byte(v))
		i += 2
	}

	return b.String(), nil
}

// pathToKey converts a store path into a KV key.
func pathToKey(path string) (string, error) {
	segments, err := store.Split(path)
	if err != nil {
		return "", err
	}
	for i, seg := range segments {
		segments[i] = escapeSegment(seg)
	}

	return strings.Join(segments, "."), nil
}

// keyToPath converts a KV key back into a store path.
func keyToPath(key string) (string, error) {
	tokens := strings.Split(key, ".")
	for i, tok := range tokens {
		seg, err := unescapeSegment(tok)
		if err != nil {
			return "", err
		}
		tokens[i] = seg
	}

	return store.Join(tokens...), nil
}
