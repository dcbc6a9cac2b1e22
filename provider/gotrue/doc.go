// Package gotrue implements invite.IdentityProvider on the GoTrue (Supabase
// Auth) admin REST API using the supabase-community GoTrue SDK.
//
// Invites and recovery emails are sent by GoTrue itself; the email links
// back to the configured redirect with access_token, refresh_token and
// type=invite or type=recovery in the URL fragment.
package gotrue
