package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/streamkit/go-linking/core"
)

type MutatingService interface {
	InitiateConnect(ctx context.Context, userID string, providerID string) (core.AuthorizationIntent, error)
	CompleteConnect(ctx context.Context, userID string, providerID string, params core.CallbackParams) (core.LinkStatus, error)
	Disconnect(ctx context.Context, userID string, providerID string) (core.LinkStatus, error)
}

type InitiateConnectCommand struct {
	service MutatingService
}

func NewInitiateConnectCommand(service MutatingService) *InitiateConnectCommand {
	return &InitiateConnectCommand{service: service}
}

func (c *InitiateConnectCommand) Execute(ctx context.Context, msg InitiateConnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connect service is required")
	}
	out, err := c.service.InitiateConnect(ctx, msg.UserID, msg.ProviderID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteConnectCommand struct {
	service MutatingService
}

func NewCompleteConnectCommand(service MutatingService) *CompleteConnectCommand {
	return &CompleteConnectCommand{service: service}
}

func (c *CompleteConnectCommand) Execute(ctx context.Context, msg CompleteConnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.CompleteConnect(ctx, msg.UserID, msg.ProviderID, msg.Params)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectCommand struct {
	service MutatingService
}

func NewDisconnectCommand(service MutatingService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	out, err := c.service.Disconnect(ctx, msg.UserID, msg.ProviderID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
