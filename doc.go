// Package goSession provides a session-state controller that sits between a
// user interface and an external identity provider.
//
// The controller owns one observable value, [State], whose SignedIn flag says
// whether a user is authenticated. [Controller.SignIn], [Controller.SignUp],
// [Controller.SignOut] and [Controller.RefreshFromProvider] are the only ways
// to change it. Provider backends live under provider/; the controller only
// sees the [provider.Client] interface.
//
// # Ordering
//
// All mutating operations are queued and executed in submission order on a
// single goroutine. A SignIn followed by a SignOut always ends signed out.
// Reads ([Controller.SignedIn], [Controller.State], [Controller.Subscribe])
// never wait on the provider.
//
// # Failures
//
// SignIn and SignUp return an error wrapping one of the package sentinels
// and publish the same classification in State.LastError. SignOut is
// local-first: provider failures are logged and counted, and the state is
// signed out regardless.
//
// # Lifecycle
//
// Build a controller with [New] and [Builder.Build]; call [Controller.Close]
// when done. Provider results that arrive after Close are discarded.
package goSession
