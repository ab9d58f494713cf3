// Package rate provides the Redis-backed throttles used by the local identity
// service.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key layout:
//   - <prefix>:rl:in:<email>: failed sign-ins per email
//   - <prefix>:rl:up:<email>: sign-up attempts per email
//
// # What this package must NOT do
//
//   - Decide how a throttled attempt is reported to the user.
//   - Be imported outside the goSession module.
package rate
