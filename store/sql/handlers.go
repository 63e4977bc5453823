package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func preferenceHandlers() repository.ModelHandlers[*preferenceRecord] {
	return repository.ModelHandlers[*preferenceRecord]{
		NewRecord: func() *preferenceRecord {
			return &preferenceRecord{}
		},
		GetID: func(record *preferenceRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *preferenceRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "pref_key"
		},
		GetIdentifierValue: func(record *preferenceRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.Key)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
