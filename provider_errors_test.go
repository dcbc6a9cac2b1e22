package invite_test

import (
	"errors"
	"fmt"
	"testing"

	invite "github.com/goliatone/go-auth-invite"
	"github.com/stretchr/testify/assert"
)

func TestProviderErrorMessage(t *testing.T) {
	assert.Equal(t, "gotrue delete failed: User not found", (&invite.ProviderError{
		Provider: "gotrue", Operation: "delete", Description: "User not found",
	}).Error())
	assert.Equal(t, "auth0 failed: status 500", (&invite.ProviderError{Provider: "auth0", Status: 500}).Error())
	assert.Equal(t, "invite failed: user_exists", (&invite.ProviderError{Operation: "invite", Code: "user_exists"}).Error())

	cause := errors.New("dial tcp: timeout")
	perr := &invite.ProviderError{Provider: "gotrue", Err: cause}
	assert.ErrorIs(t, perr, cause)
}

func TestProviderErrorMetadata(t *testing.T) {
	perr := &invite.ProviderError{Provider: "auth0", Operation: "invite", Status: 409, Code: "user_exists"}
	meta := perr.Metadata()
	assert.Equal(t, "auth0", meta["provider"])
	assert.Equal(t, 409, meta["status"])
	assert.Equal(t, "user_exists", meta["code"])
	assert.NotContains(t, meta, "description")
}

func TestDeletionPolicy(t *testing.T) {
	policy := invite.DefaultDeletionPolicy()

	assert.True(t, policy.IsAccountAbsent(&invite.ProviderError{Status: 404}))
	assert.True(t, policy.IsAccountAbsent(&invite.ProviderError{Status: 400, Code: "User_Not_Found"}))
	assert.True(t, policy.IsAccountAbsent(fmt.Errorf("wrapped: %w", &invite.ProviderError{Code: "inexistent_user"})))
	assert.False(t, policy.IsAccountAbsent(&invite.ProviderError{Status: 500}))
	assert.False(t, policy.IsAccountAbsent(errors.New("404 not found")))
	assert.False(t, policy.IsAccountAbsent(nil))

	custom := invite.DeletionPolicy{AbsentStatuses: []int{410}}
	assert.True(t, custom.IsAccountAbsent(&invite.ProviderError{Status: 410}))
	assert.False(t, custom.IsAccountAbsent(&invite.ProviderError{Status: 404}))
}
