// Package gocommand exposes the loop client operations on the go-command
// registry and dispatcher.
package gocommand

import (
	"context"
	"fmt"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	loopcommand "github.com/goliatone/go-loop-client/command"
	"github.com/goliatone/go-loop-client/core"
	loopquery "github.com/goliatone/go-loop-client/query"
)

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// LoopService is the client surface bound to the dispatcher. *client.Client
// satisfies it.
type LoopService interface {
	loopcommand.CallService
	loopquery.CallsReader
}

// Bindings holds the dispatcher subscriptions created by RegisterLoop.
type Bindings struct {
	subscriptions []commanddispatcher.Subscription
}

// Close removes every subscription. Safe to call more than once.
func (b *Bindings) Close() {
	if b == nil {
		return
	}
	for _, sub := range b.subscriptions {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	b.subscriptions = nil
}

// RegisterLoop registers and subscribes the call url and call info commands
// and the calls query for service, then initializes the registry. On failure
// nothing stays subscribed.
func RegisterLoop(adapter *RegistryAdapter, service LoopService, runnerOpts ...runner.Option) (*Bindings, error) {
	if service == nil {
		return nil, core.MissingParameterError("gocommand", "loop service")
	}
	bindings := &Bindings{}

	sub, err := RegisterAndSubscribe[loopcommand.RequestCallURLMessage](adapter, loopcommand.NewRequestCallURLCommand(service), runnerOpts...)
	if err != nil {
		return nil, err
	}
	bindings.subscriptions = append(bindings.subscriptions, sub)

	sub, err = RegisterAndSubscribe[loopcommand.RequestCallInfoMessage](adapter, loopcommand.NewRequestCallInfoCommand(service), runnerOpts...)
	if err != nil {
		bindings.Close()
		return nil, err
	}
	bindings.subscriptions = append(bindings.subscriptions, sub)

	querySub, err := RegisterAndSubscribeQuery[loopquery.ListCallsMessage, []core.CallSummary](adapter, loopquery.NewListCallsQuery(service), runnerOpts...)
	if err != nil {
		bindings.Close()
		return nil, err
	}
	bindings.subscriptions = append(bindings.subscriptions, querySub)

	if err := adapter.Initialize(); err != nil {
		bindings.Close()
		return nil, err
	}
	return bindings, nil
}

// RequestCallURL dispatches a RequestCallURLMessage and returns the stored
// result.
func RequestCallURL(ctx context.Context, callerID string) (core.CallURL, error) {
	collector := command.NewResult[core.CallURL]()
	ctx = command.ContextWithResult(ctx, collector)
	if err := Dispatch(ctx, loopcommand.RequestCallURLMessage{CallerID: callerID}); err != nil {
		return core.CallURL{}, err
	}
	out, _ := collector.Load()
	return out, nil
}

func RequestCallInfo(ctx context.Context, token string) (core.CallSession, error) {
	collector := command.NewResult[core.CallSession]()
	ctx = command.ContextWithResult(ctx, collector)
	if err := Dispatch(ctx, loopcommand.RequestCallInfoMessage{Token: token}); err != nil {
		return core.CallSession{}, err
	}
	out, _ := collector.Load()
	return out, nil
}

func ListCalls(ctx context.Context, version int) ([]core.CallSummary, error) {
	return Query[loopquery.ListCallsMessage, []core.CallSummary](ctx, loopquery.ListCallsMessage{Version: &version})
}
