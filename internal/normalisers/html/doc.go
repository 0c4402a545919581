// Package html extracts readable text from HTML, including Confluence
// storage format. Tags, scripts and styles are stripped, block boundaries
// become newlines and entities are decoded.
package html
