// Package connectors provides implementations of the Connector interface
// for the supported systems of record. Each subpackage knows how to page
// through one API: jira and confluence share the atlassian REST client,
// github uses go-github.
//
// Connectors are registered with the Factory at startup via RegisterDefaults.
package connectors
