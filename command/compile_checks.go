package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RequestCallURLMessage]  = (*RequestCallURLCommand)(nil)
	_ gocmd.Commander[RequestCallInfoMessage] = (*RequestCallInfoCommand)(nil)
)
