package invite

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type MarkConfirmedMessage struct {
	UserID uuid.UUID `json:"user_id"`
	// OnConfirmed receives the confirmed record.
	OnConfirmed func(*User) `json:"-"`
}

func (e MarkConfirmedMessage) Type() string { return "invite.user.confirm" }

type MarkConfirmedHandler struct {
	manager *Manager
}

func NewMarkConfirmedHandler(manager *Manager) *MarkConfirmedHandler {
	return &MarkConfirmedHandler{manager: manager}
}

func (h *MarkConfirmedHandler) Execute(ctx context.Context, event MarkConfirmedMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during invite confirmation",
		)
	default:
	}

	user, err := h.manager.MarkConfirmed(ctx, event.UserID)
	if err != nil {
		return err
	}

	if event.OnConfirmed != nil {
		event.OnConfirmed(user)
	}
	return nil
}
