// Package provider defines the boundary between goSession and an identity
// provider: the service that actually validates credentials, issues sessions
// and persists them between application runs.
//
// # Components
//
//   - [Client]: the four calls the session controller makes.
//   - [User]: the minimal identity handle a provider returns.
//   - [Error] / [Kind]: classified provider failures.
//
// # Backends
//
//   - provider/local: in-process identity service on Redis.
//   - provider/rest: hosted identity-toolkit REST API.
//   - provider/providertest: scriptable stub for tests.
//
// # What this package must NOT do
//
//   - Import goSession or any backend package.
//   - Perform I/O.
package provider
