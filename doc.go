// Package auth implements credential verification and session lifecycle
// management: login and registration, signed access tokens, rotating
// opaque refresh tokens, and a single use reset code recovery flow.
//
// Refresh tokens:
//   - Every login mints an opaque refresh token row. Refreshing a session
//     rotates it: the presented value is retired and a successor inserted
//     in one atomic ledger operation, with the replacement recorded on the
//     old row. Presenting a retired value again is rejected and surfaced
//     through the activity sink as possible reuse.
//   - Revocation is explicit per token or in bulk per principal. Dead rows
//     stay in the ledger for a configurable retention window before
//     PurgeExpired removes them.
//
// Password recovery:
//   - RequestPasswordResetHandler issues a six digit single use code and
//     hands it to a Notifier; the response never reveals whether the email
//     has an account. VerifyResetCodeHandler redeems the code to either
//     replace the password hash or mint a fresh session.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the command
//     handlers to describe login, rotation, revocation, and reset events.
//     Sinks run best-effort (errors are logged) so you can forward to a
//     database or queue without blocking authentication.
package auth
