package query

const TypeListCalls = "loop.query.calls.list"

type ListCallsMessage struct {
	// Version is required; nil means absent.
	Version *int
}

func (ListCallsMessage) Type() string { return TypeListCalls }

func (m ListCallsMessage) Validate() error {
	if m.Version == nil {
		return queryValidationError("version", "version is required")
	}
	return nil
}
