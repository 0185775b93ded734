package db

import (
	"crypto/rand"
	"encoding/hex"

	"schoolhub/internal/constants"
)

// GenerateID returns prefix_<random hex>. Documents use it for every id the
// app mints.
func GenerateID(prefix string) (string, error) {
	b := make([]byte, constants.IDRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + "_" + hex.EncodeToString(b), nil
}
