package invite_test

import (
	"testing"

	invite "github.com/goliatone/go-auth-invite"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInvitationFragment(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"hash prefix", "#access_token=a&refresh_token=r&type=invite&expires_in=3600"},
		{"bare", "access_token=a&refresh_token=r&type=invite&expires_in=3600"},
		{"full url", "http://localhost:5000/auth/set-password#access_token=a&refresh_token=r&type=invite&expires_in=3600"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := invite.ParseInvitationFragment(tc.input)
			require.NoError(t, err)
			assert.Equal(t, "a", token.AccessToken)
			assert.Equal(t, "r", token.RefreshToken)
			assert.Equal(t, invite.TokenTypeInvite, token.Type)
			assert.Equal(t, 3600, token.ExpiresIn)
		})
	}
}

func TestParseInvitationFragmentRecoveryType(t *testing.T) {
	token, err := invite.ParseInvitationFragment("#access_token=a&refresh_token=r&type=Recovery")
	require.NoError(t, err)
	assert.Equal(t, invite.TokenTypeRecovery, token.Type)
	assert.NoError(t, token.Expect(invite.TokenTypeRecovery))
	assert.True(t, invite.IsTokenTypeMismatch(token.Expect(invite.TokenTypeInvite)))
}

func TestParseInvitationFragmentMissingTokens(t *testing.T) {
	_, err := invite.ParseInvitationFragment("#access_token=a&type=invite")
	require.Error(t, err)
	assert.True(t, invite.IsInvalidToken(err))

	_, err = invite.ParseInvitationFragment("")
	require.Error(t, err)
	assert.True(t, invite.IsInvalidToken(err))
}

func TestParseInvitationFragmentProviderError(t *testing.T) {
	_, err := invite.ParseInvitationFragment("#error=access_denied&error_code=otp_expired&error_description=Email+link+is+invalid+or+has+expired")
	require.Error(t, err)
	assert.True(t, invite.IsInvalidToken(err))

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, "otp_expired", richErr.Metadata["error_code"])
	assert.Equal(t, "Email link is invalid or has expired", richErr.Metadata["error_description"])
}

func TestInvitationTokenExpect(t *testing.T) {
	token := invite.InvitationToken{Type: invite.TokenTypeInvite}
	err := token.Expect(invite.TokenTypeInvite)
	require.Error(t, err)
	assert.True(t, invite.IsInvalidToken(err))

	token.AccessToken = "a"
	assert.NoError(t, token.Expect(invite.TokenTypeInvite))

	err = token.Expect(invite.TokenTypeRecovery)
	require.Error(t, err)
	assert.True(t, invite.IsTokenTypeMismatch(err))

	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, "recovery", richErr.Metadata["expected"])
	assert.Equal(t, "invite", richErr.Metadata["received"])
}
