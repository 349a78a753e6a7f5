package chunk

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SourceID returns the digest identifying a whole source text.
func SourceID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// DocumentID returns the id for text stored without chunking.
func DocumentID(text string, scheme IDScheme) string {
	if scheme == IDSchemePrefix {
		sum := md5.Sum([]byte(text))
		return hex.EncodeToString(sum[:])[:12]
	}
	return SourceID(text)
}

// chunkID derives the id of the chunk at index within source. named marks
// a caller-chosen sourceID, which the prefix scheme mixes in as well.
func chunkID(scheme IDScheme, source, sourceID string, named bool, index int, content string) string {
	if scheme == IDSchemePrefix {
		key := prefix(source, 100)
		if named {
			key = sourceID + "/" + key
		}
		sum := md5.Sum([]byte(fmt.Sprintf("%s_%d", key, index)))
		return hex.EncodeToString(sum[:])[:12]
	}

	contentSum := sha256.Sum256([]byte(content))
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", sourceID, index, hex.EncodeToString(contentSum[:]))))
	return hex.EncodeToString(sum[:])[:16]
}

// prefix returns the first n characters of s.
func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
