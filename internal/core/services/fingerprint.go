package services

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// Fingerprint returns the SHA-256 hex digest of text exactly as normalised.
// Empty text has a valid fingerprint.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Classify fingerprints doc and compares it with the hash recorded for the
// same document id. An empty existing hash means no record exists.
// Metadata is not part of the fingerprint.
func Classify(doc *domain.Document, existing string) (string, domain.Classification) {
	hash := Fingerprint(doc.FullText)
	switch {
	case existing == "":
		return hash, domain.ClassNew
	case existing == hash:
		return hash, domain.ClassUnchanged
	default:
		return hash, domain.ClassChanged
	}
}
