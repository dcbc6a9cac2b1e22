// Package invite manages the invitation lifecycle of locally stored users
// whose credentials live with an external identity provider.
//
// Lifecycle:
//   - Manager.CreateUser issues a provider invitation first and only then
//     persists the local record. A failed write removes the provider account
//     again so the two sides never drift.
//   - Manager.ResendInvite replaces the previous provider account. Deleting the
//     old account is best effort; DeletionPolicy decides which failures mean
//     "already gone", and WithStrictDeletion turns the rest into errors.
//   - Manager.MarkConfirmed, CompleteInvite and CompleteRecovery move a user
//     from invited to confirmed. Confirmation is idempotent and the first
//     timestamp wins. A resend racing a confirmation never un-confirms.
//   - Manager.RequestRecovery starts a password reset that redirects to the
//     reset-password page. Unknown emails succeed silently.
//
// HTTP:
//   - HTTPController exposes the operations. The users routes take admin
//     middleware, normally AdminGuard with RequireRole.
//
// Providers:
//   - IdentityProvider is implemented by provider/gotrue (GoTrue admin API) and
//     provider/auth0 (management API users plus password change tickets).
//   - TokenVerifier checks the access token delivered in the link fragment,
//     see ParseInvitationFragment.
//
// Activity sinks:
//   - ActivitySink receives every lifecycle event. Sinks are best effort and
//     their errors are logged, never returned to the caller.
package invite
