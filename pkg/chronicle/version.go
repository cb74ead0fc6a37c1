// Package chronicle exposes module-level metadata.
package chronicle

const Version = "0.1.0"
