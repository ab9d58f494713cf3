// Package rest implements provider.Client against a hosted identity-toolkit
// REST API (accounts:signInWithPassword and accounts:signUp).
//
// Error messages returned by the service are mapped onto provider kinds.
// Transport failures and 5xx responses are network errors. Tokens returned
// on success are kept in a tokencache.Cache, which is all CurrentUser reads.
package rest
