package push

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/goliatone/go-loop-client/core"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 4 << 10

// NewHandler serves PUT /push, the endpoint registered as the loop push URL.
func NewHandler(processor *Processor) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/push", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
		if err != nil {
			writeError(w, err)
			return
		}
		n, err := ParseNotification(body)
		if err != nil {
			writeError(w, err)
			return
		}
		outcome, err := processor.Process(req.Context(), n)
		if err != nil {
			// the push server redelivers on 5xx
			writeJSON(w, http.StatusBadGateway, errorBody(err))
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	}).Methods(http.MethodPut, http.MethodPost)
	return r
}

func writeError(w http.ResponseWriter, err error) {
	status := core.MapError(err).Code
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody(err))
}

func errorBody(err error) map[string]any {
	mapped := core.MapError(err)
	return map[string]any{
		"error":     mapped.Message,
		"text_code": mapped.TextCode,
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
