// Package jwt issues and verifies the ID tokens handed out by the local
// identity service. Tokens carry the user ID, email and session ID and are
// verified offline with the configured key.
package jwt
