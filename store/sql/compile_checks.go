package sqlstore

import "github.com/goliatone/go-loop-client/core"

var (
	_ core.PreferenceStore = (*PreferenceStore)(nil)
	_ core.PreferenceStore = (*CachedPreferenceStore)(nil)
)
