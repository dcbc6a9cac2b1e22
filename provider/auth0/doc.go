// Package auth0 implements invite.IdentityProvider and invite.TokenVerifier
// on top of Auth0.
//
// Invites create a user in a database connection and return a password
// change ticket marked with "#type=invite"; the ticket link is what the
// invited user follows to set a password. Access tokens issued after the
// password is set are verified against the tenant JWKS.
package auth0
