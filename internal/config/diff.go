package config

// ConfigDiff describes what changed between two configs. Only fields that
// can be safely hot-reloaded are tracked — the embedding provider and
// storage DSN require a process restart, since changing them out from under
// a running store would silently corrupt dimension/connection invariants.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SearchChanged     bool
	GraphChanged      bool
	DedupChanged      bool
	SafeguardsChanged bool
	LearnedChanged    bool
}

// Changed reports whether any hot-reloadable field differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.SearchChanged || d.GraphChanged ||
		d.DedupChanged || d.SafeguardsChanged || d.LearnedChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.SearchChanged = old.Search != new.Search
	d.GraphChanged = old.Graph != new.Graph
	d.DedupChanged = old.Dedup != new.Dedup
	d.SafeguardsChanged = old.Safeguards != new.Safeguards
	d.LearnedChanged = old.Learned != new.Learned

	return d
}
