// Package report holds helpers shared by report ledger clients.
package report

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Keccak256Hex returns the 0x-prefixed Keccak-256 digest of text's UTF-8 bytes.
// Clients use it to derive report fingerprints and category tags from free text.
func Keccak256Hex(text string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(text))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
