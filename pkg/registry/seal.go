package registry

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/kaisigil/gate/pkg/canonicaljson"
)

// sealSize is the BLAKE2b digest length the spec calls for: 16 bytes (128
// bits), not the default 64-byte BLAKE2b-512.
const sealSize = 16

// computeSeal returns the hex-encoded 128-bit BLAKE2b digest of the
// canonical JSON {"urls": orderedURLs}. It is pure: the same ordered slice
// always yields the same seal, independent of process or machine.
func computeSeal(orderedURLs []string) string {
	if orderedURLs == nil {
		orderedURLs = []string{}
	}
	doc := map[string]interface{}{"urls": orderedURLs}

	canonical, err := canonicaljson.Marshal(doc)
	if err != nil {
		// Marshal can only fail on inputs containing unmarshalable values
		// (channels, funcs); orderedURLs is a []string, so this is
		// unreachable in practice.
		return ""
	}

	h, err := blake2b.New(sealSize, nil)
	if err != nil {
		return ""
	}
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}
