// Package identity provides the identity, session, and authorization core for
// the BookSwap marketplace: credential storage (bcrypt password hashes,
// AES-GCM encrypted PII), JWT access-token issuance and validation,
// refresh-token rotation, and the role-gated state machines that govern
// account approval, post moderation, and the borrow-request lifecycle.
//
// Account lifecycle:
//   - Book owners sign up Pending and cannot log in until an admin approves
//     them. ApprovalMachine centralizes the Pending -> {Approved, Rejected}
//     transitions for owners and the Pending -> {Available, Rejected}
//     transitions for book posts. Transitions are one-shot: processing an
//     already-processed entity fails with ErrAlreadyProcessed.
//
// Sessions:
//   - Authenticator verifies credentials and mints a short-lived access token
//     (1h for admins, 2h for owners and readers) plus an opaque refresh token
//     persisted for 7 days. Rotator exchanges a presented refresh token for a
//     fresh pair, deleting the old row and inserting the new one in a single
//     transaction so a replayed token loses cleanly.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the authenticator,
//     the rotator, and the state machines. Sinks run best-effort (errors are
//     logged) so you can forward events to a database or queue without
//     blocking authentication.
package identity
