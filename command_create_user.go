package invite

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

type CreateUserMessage struct {
	Email        string         `json:"email" example:"jane@example.com" doc:"Email address of the invited user"`
	Name         string         `json:"name" example:"Jane Doe" doc:"Display name"`
	Phone        string         `json:"phone" example:"+14155550100" doc:"Phone number"`
	TenantID     string         `json:"tenant_id"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
	// OnCreated receives the persisted record.
	OnCreated func(*User) `json:"-"`
}

func (e CreateUserMessage) Type() string { return "invite.user.create" }

func (e CreateUserMessage) Input() CreateUserInput {
	return CreateUserInput{
		Email:        e.Email,
		Name:         e.Name,
		Phone:        e.Phone,
		TenantID:     e.TenantID,
		UserMetadata: e.UserMetadata,
		AppMetadata:  e.AppMetadata,
	}
}

type CreateUserHandler struct {
	manager *Manager
}

func NewCreateUserHandler(manager *Manager) *CreateUserHandler {
	return &CreateUserHandler{manager: manager}
}

func (h *CreateUserHandler) Execute(ctx context.Context, event CreateUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user invitation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateUserHandler) execute(ctx context.Context, event CreateUserMessage) error {
	user, err := h.manager.CreateUser(ctx, event.Input())
	if err != nil {
		return err
	}

	if event.OnCreated != nil {
		event.OnCreated(user)
	}
	return nil
}
