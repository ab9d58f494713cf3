// Package middleware exposes HTTP middleware that gates handlers on the
// session state held by a goSession.Controller.
//
// # Guards
//
//   - [RequireSignedIn]: rejects requests while the controller is signed out.
//   - [Guard]: like RequireSignedIn, with a caller-supplied rejection handler.
//
// Guards read the published state only. They never call the provider and
// never submit operations to the controller.
package middleware
