// Package password implements password hashing and verification with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// caller can re-hash after the next successful sign-in.
//
// # Policy
//
// The only policy here is length: passwords below MinPasswordBytes are
// rejected with [ErrPasswordTooShort], which the local identity service
// reports as a weak password.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other goSession package.
//   - Log plaintext passwords.
package password
