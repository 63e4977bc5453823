package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-loop-client/core"
)

// CallService is the mutating half of the loop client. *client.Client
// satisfies it.
type CallService interface {
	CallURL(ctx context.Context, req core.CallURLRequest) (core.CallURL, error)
	CallInfo(ctx context.Context, req core.CallInfoRequest) (core.CallSession, error)
}

type RequestCallURLCommand struct {
	service CallService
}

func NewRequestCallURLCommand(service CallService) *RequestCallURLCommand {
	return &RequestCallURLCommand{service: service}
}

func (c *RequestCallURLCommand) Execute(ctx context.Context, msg RequestCallURLMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: call url service is required")
	}
	out, err := c.service.CallURL(ctx, core.CallURLRequest{CallerID: msg.CallerID})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RequestCallInfoCommand struct {
	service CallService
}

func NewRequestCallInfoCommand(service CallService) *RequestCallInfoCommand {
	return &RequestCallInfoCommand{service: service}
}

func (c *RequestCallInfoCommand) Execute(ctx context.Context, msg RequestCallInfoMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: call info service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.CallInfo(ctx, core.CallInfoRequest{Token: msg.Token})
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
