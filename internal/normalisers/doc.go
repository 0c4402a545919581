// Package normalisers turns source-native payloads into plain text and flat
// metadata. Each subpackage handles one MIME type family; Registry
// dispatches on RawDocument.MIMEType.
//
// Normalisers are registered with the Registry at startup via RegisterDefaults.
package normalisers
