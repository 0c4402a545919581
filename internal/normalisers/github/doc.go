// Package github provides the normaliser for GitHub issues
// (application/vnd.github.issue+json).
//
// The issue body and each comment are markdown. Formatting is stripped and
// comments keep their author as an "@login:" prefix so conversations stay
// searchable by participant.
package github
