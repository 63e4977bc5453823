package command

import "strings"

const (
	TypeRequestCallURL  = "loop.command.call_url.request"
	TypeRequestCallInfo = "loop.command.call_info.request"
)

// RequestCallURLMessage asks the server for a shareable call url. An empty
// CallerID is allowed.
type RequestCallURLMessage struct {
	CallerID string
}

func (RequestCallURLMessage) Type() string { return TypeRequestCallURL }

func (RequestCallURLMessage) Validate() error { return nil }

type RequestCallInfoMessage struct {
	Token string
}

func (RequestCallInfoMessage) Type() string { return TypeRequestCallInfo }

func (m RequestCallInfoMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return commandValidationError("token", "token is required")
	}
	return nil
}
