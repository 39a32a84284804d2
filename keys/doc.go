// Package keys provides the Ed25519 did:key signer and verifier used for
// signed commits, plus seed derivation and a local key store.
//
// Stable:
//   - did:key encoding, signing and verification.
//   - HKDF role-seed derivation.
//
// Experimental:
//   - Filesystem-backed key storage (KeyStore). It is a local-first
//     convenience for the CLI and may change.
package keys
