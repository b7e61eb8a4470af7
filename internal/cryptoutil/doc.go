// Package cryptoutil checks the integrity of content bundles: hex digest
// helpers and detached signature verification against a KMS public key.
package cryptoutil
