package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-loop-client/core"
)

const maxBodyExcerpt = 256

// decodeResponse normalizes a raw transport response. Status >= 400 becomes a
// remote error built from the first structured error entry. Any other
// response must be a JSON object carrying every required key, otherwise it
// becomes an "Invalid data received" error.
func decodeResponse(res core.TransportResponse, target any, required ...string) error {
	if res.StatusCode >= http.StatusBadRequest {
		return remoteError(res)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(res.Body, &fields); err != nil || fields == nil {
		return invalidData(res, "body is not a json object")
	}
	for _, key := range required {
		raw, ok := fields[key]
		if !ok || isJSONNull(raw) {
			return invalidData(res, "missing "+key)
		}
	}
	if err := json.Unmarshal(res.Body, target); err != nil {
		return invalidData(res, err.Error())
	}
	return nil
}

func remoteError(res core.TransportResponse) error {
	status := res.StatusCode
	description := strings.TrimSpace(http.StatusText(status))
	metadata := map[string]any{"status": status}

	var body core.RemoteErrorBody
	if err := json.Unmarshal(res.Body, &body); err == nil {
		if len(body.Errors) > 0 {
			first := body.Errors[0]
			if text := strings.TrimSpace(first.Description); text != "" {
				description = text
			}
			metadata["location"] = first.Location
			metadata["name"] = first.Name
			metadata["errors"] = len(body.Errors)
		} else if text := strings.TrimSpace(body.Error); text != "" {
			description = text
		}
		if body.Errno != 0 {
			metadata["errno"] = body.Errno
		}
	} else {
		metadata["body"] = excerpt(res.Body)
	}

	message := strings.TrimSpace(fmt.Sprintf("%d %s", status, description))
	return core.RemoteError(status, message, metadata)
}

func invalidData(res core.TransportResponse, reason string) error {
	return core.InvalidDataError(res.StatusCode, map[string]any{
		"status": res.StatusCode,
		"reason": reason,
		"body":   excerpt(res.Body),
	})
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxBodyExcerpt {
		return text[:maxBodyExcerpt] + "..."
	}
	return text
}
