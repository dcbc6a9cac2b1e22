package invite

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type ResendInviteMessage struct {
	UserID uuid.UUID `json:"user_id" doc:"ID of the user that should receive a new invite"`
	// OnSent receives the resend result.
	OnSent func(*ResendResult) `json:"-"`
}

func (e ResendInviteMessage) Type() string { return "invite.user.resend" }

type ResendInviteHandler struct {
	manager *Manager
}

func NewResendInviteHandler(manager *Manager) *ResendInviteHandler {
	return &ResendInviteHandler{manager: manager}
}

func (h *ResendInviteHandler) Execute(ctx context.Context, event ResendInviteMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during invite resend",
		)
	default:
	}

	res, err := h.manager.ResendInvite(ctx, event.UserID)
	if err != nil {
		return err
	}

	if event.OnSent != nil {
		event.OnSent(res)
	}
	return nil
}
