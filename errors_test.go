package invite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	invite "github.com/goliatone/go-auth-invite"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorSentinels(t *testing.T) {
	cases := []struct {
		name     string
		err      *goerrors.Error
		is       func(error) bool
		category goerrors.Category
		code     int
	}{
		{"user not found", invite.ErrUserNotFound, invite.IsUserNotFound, goerrors.CategoryNotFound, 404},
		{"duplicate email", invite.ErrDuplicateEmail, invite.IsDuplicateEmail, goerrors.CategoryConflict, 409},
		{"already confirmed", invite.ErrAlreadyConfirmed, invite.IsAlreadyConfirmed, goerrors.CategoryConflict, 400},
		{"provider failure", invite.ErrProviderFailure, invite.IsProviderFailure, goerrors.CategoryExternal, 502},
		{"invalid transition", invite.ErrInvalidTransition, invite.IsInvalidTransition, goerrors.CategoryValidation, 400},
		{"token type mismatch", invite.ErrTokenTypeMismatch, invite.IsTokenTypeMismatch, goerrors.CategoryBadInput, 400},
		{"invalid token", invite.ErrInvalidToken, invite.IsInvalidToken, goerrors.CategoryAuth, 401},
		{"invalid input", invite.ErrInvalidInput, invite.IsInvalidInput, goerrors.CategoryValidation, 400},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.category, tc.err.Category)
			assert.Equal(t, tc.code, tc.err.Code)
			assert.True(t, tc.is(tc.err))
			assert.True(t, tc.is(tc.err.Clone()))
			assert.True(t, tc.is(fmt.Errorf("wrapped: %w", tc.err)))
			assert.False(t, tc.is(errors.New("plain")))
			assert.False(t, tc.is(nil))
		})
	}
}

func TestErrorPredicatesFollowSourceChain(t *testing.T) {
	inner := invite.ErrProviderFailure.Clone()
	outer := goerrors.New("outer", goerrors.CategoryOperation)
	outer.Source = inner

	assert.True(t, invite.IsProviderFailure(outer))
	assert.False(t, invite.IsUserNotFound(outer))
}

func TestErrorSentinelsStayClean(t *testing.T) {
	f := newManagerFixture(t)
	_, err := f.manager.CreateUser(context.Background(), invite.CreateUserInput{Email: "bad"})
	require.Error(t, err)

	assert.Empty(t, invite.ErrInvalidInput.Metadata)
	assert.Nil(t, invite.ErrInvalidInput.Source)
}
