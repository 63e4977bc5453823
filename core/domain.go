package core

import (
	"math"
	"time"
)

const (
	HeaderServerToken = "Loop-Server-Token"

	PrefServerToken          = "loop-server-token"
	PrefURLExpiryTimeSeconds = "urls-expiry-time-seconds"
)

// CallURLExpiryMultiplier converts the server expiresAt value, in hours, into
// the seconds handed to CallURLExpiryNotifier. An expiresAt of 60 is reported
// as 60*60*60.
const CallURLExpiryMultiplier int64 = 60 * 60

type CallType string

const (
	CallTypeAudioVideo CallType = "audio-video"
	CallTypeAudioOnly  CallType = "audio"
)

type CallURLRequest struct {
	CallerID string
}

type CallURL struct {
	CallURL   string `json:"call_url"`
	// ExpiresAt is a JSON number and may be fractional.
	ExpiresAt float64 `json:"expiresAt"`
}

// ExpirySeconds is the value reported to the expiry notifier.
func (c CallURL) ExpirySeconds() int64 {
	return int64(math.Round(c.ExpiresAt * float64(CallURLExpiryMultiplier)))
}

type CallsInfoRequest struct {
	// Version is required; nil means absent.
	Version *int
}

type CallSummary struct {
	CallID         string   `json:"callId,omitempty"`
	CallerID       string   `json:"callerId,omitempty"`
	CallType       CallType `json:"callType,omitempty"`
	CallToken      string   `json:"callToken,omitempty"`
	CallURL        string   `json:"callUrl,omitempty"`
	ProgressURL    string   `json:"progressURL,omitempty"`
	WebsocketToken string   `json:"websocketToken,omitempty"`
	SessionID      string   `json:"sessionId,omitempty"`
	SessionToken   string   `json:"sessionToken,omitempty"`
	APIKey         string   `json:"apiKey,omitempty"`
}

type CallInfoRequest struct {
	Token string
}

// CallSession holds media layer credentials. The client does not interpret
// them.
type CallSession struct {
	SessionID    string `json:"sessionId"`
	SessionToken string `json:"sessionToken"`
	APIKey       string `json:"apiKey"`
}

type RemoteErrorEntry struct {
	Location    string `json:"location"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type RemoteErrorBody struct {
	Status string             `json:"status"`
	Code   int                `json:"code,omitempty"`
	Errno  int                `json:"errno,omitempty"`
	Error  string             `json:"error,omitempty"`
	Errors []RemoteErrorEntry `json:"errors,omitempty"`
}

type I18nSettings struct {
	Lang        string `json:"lang"`
	DefaultLang string `json:"defaultLang"`
}

type Registration struct {
	PushURL      string
	ServerToken  string
	RegisteredAt time.Time
}
