// Package local implements provider.Client as an in-process identity
// service on Redis.
//
// Accounts are JSON records keyed by lower-cased email. Passwords are
// argon2id hashes, sessions live in the session store and each sign-in
// issues a signed ID token that is written to the configured token cache.
// The cached token is what CurrentUser reads after a restart.
//
// Failed sign-ins and sign-up attempts are throttled per email.
package local
