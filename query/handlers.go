package query

import (
	"context"

	"github.com/goliatone/go-loop-client/core"
)

type CallsReader interface {
	CallsInfo(ctx context.Context, req core.CallsInfoRequest) ([]core.CallSummary, error)
}

type ListCallsQuery struct {
	reader CallsReader
}

func NewListCallsQuery(reader CallsReader) *ListCallsQuery {
	return &ListCallsQuery{reader: reader}
}

func (q *ListCallsQuery) Query(ctx context.Context, msg ListCallsMessage) ([]core.CallSummary, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: calls reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.CallsInfo(ctx, core.CallsInfoRequest{Version: msg.Version})
}
