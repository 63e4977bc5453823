package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type preferenceRecord struct {
	bun.BaseModel `bun:"table:loop_preferences,alias:lp"`

	ID        string    `bun:"id,pk"`
	Key       string    `bun:"pref_key,notnull"`
	Value     string    `bun:"value,notnull"`
	Encrypted bool      `bun:"encrypted,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Preference is a stored preference as listed by PreferenceStore.List.
// Value is already decrypted.
type Preference struct {
	Key       string
	Value     string
	Encrypted bool
	UpdatedAt time.Time
}
