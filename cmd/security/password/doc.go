// Package password builds and checks password verifier records.
//
// A verifier record is the self-describing string
//
//	<algorithm>$<iterations>$<salt_b64>$<hash_b64>
//
// for example "pbkdf2_sha512$600000$c2FsdA==$aGFzaA==". Browser clients produce the
// same format with WebCrypto, so records created on either side check on the server.
//
// Security notes:
// - Records are treated as untrusted input and decoded strictly.
// - Check refuses parameters that exceed configured bounds (anti-DoS).
// - Hash comparison is constant time.
package password
