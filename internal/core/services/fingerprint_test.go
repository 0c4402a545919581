package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

func TestFingerprint_Deterministic(t *testing.T) {
	first := Fingerprint("Login fails on Safari")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Fingerprint("Login fails on Safari"))
	}
	assert.Len(t, first, 64)
}

func TestFingerprint_KnownValues(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Fingerprint(""))
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", Fingerprint("hello world"))
}

func TestFingerprint_WhitespaceMatters(t *testing.T) {
	assert.NotEqual(t, Fingerprint("hello world"), Fingerprint("hello world "))
}

func TestClassify(t *testing.T) {
	doc := &domain.Document{ID: "PROJ-1", FullText: "hello world"}
	h1 := Fingerprint("hello world")

	tests := []struct {
		name     string
		existing string
		want     domain.Classification
	}{
		{"no record", "", domain.ClassNew},
		{"same hash", h1, domain.ClassUnchanged},
		{"different hash", Fingerprint("hello there"), domain.ClassChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, class := Classify(doc, tt.existing)
			assert.Equal(t, h1, hash)
			assert.Equal(t, tt.want, class)
		})
	}
}

func TestClassify_EmptyTextStillHashed(t *testing.T) {
	doc := &domain.Document{ID: "PROJ-2"}

	hash, class := Classify(doc, "")
	assert.Equal(t, Fingerprint(""), hash)
	assert.Equal(t, domain.ClassNew, class)

	_, class = Classify(doc, hash)
	assert.Equal(t, domain.ClassUnchanged, class)
}

func TestClassify_IgnoresMetadata(t *testing.T) {
	a := &domain.Document{ID: "X", FullText: "same", Metadata: map[string]any{"status": "Open"}}
	b := &domain.Document{ID: "X", FullText: "same", Metadata: map[string]any{"status": "Done"}}

	ha, _ := Classify(a, "")
	_, class := Classify(b, ha)
	assert.Equal(t, domain.ClassUnchanged, class)
}
