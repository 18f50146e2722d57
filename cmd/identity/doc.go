// Package identity owns vault accounts: the email identity, the opaque
// password verifier record, the wrapped vault key and the two-factor block.
//
// The server never sees a master password or an unwrapped vault key. It
// stores what clients send (verifier record, KEK salt, wrapped key) and
// hands it back at login.
//
// Stores return errors built from the sentinel kinds in kinds.go so HTTP
// layers can map them without string matching.
package identity
