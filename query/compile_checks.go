package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-loop-client/core"
)

var _ gocmd.Querier[ListCallsMessage, []core.CallSummary] = (*ListCallsQuery)(nil)
