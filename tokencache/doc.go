// Package tokencache persists the provider's session token on the device so
// a later run can report who is signed in without contacting the provider.
//
// Three backends share the [Cache] interface: an in-process [Memory] cache,
// a JSON [File] cache and a [SQLite] cache.
package tokencache
