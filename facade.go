package loopclient

import (
	"fmt"

	loopcommand "github.com/goliatone/go-loop-client/command"
	loopquery "github.com/goliatone/go-loop-client/query"
)

type CommandQueryService interface {
	loopcommand.CallService
	loopquery.CallsReader
}

type Commands struct {
	RequestCallURL  *loopcommand.RequestCallURLCommand
	RequestCallInfo *loopcommand.RequestCallInfoCommand
}

type Queries struct {
	ListCalls *loopquery.ListCallsQuery
}

// Facade groups the go-command handlers for one client.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("loopclient: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			RequestCallURL:  loopcommand.NewRequestCallURLCommand(service),
			RequestCallInfo: loopcommand.NewRequestCallInfoCommand(service),
		},
		queries: Queries{
			ListCalls: loopquery.NewListCallsQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
