package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything else
// requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	RitualChanged bool
	NewRitual     RitualConfig

	SanityChanged bool
	NewSanity     SanityConfig
}

// Changed reports whether any hot-reloadable setting differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.RitualChanged || d.SanityChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Ritual != new.Ritual {
		d.RitualChanged = true
		d.NewRitual = new.Ritual
	}

	if !sameSanity(old.Sanity, new.Sanity) {
		d.SanityChanged = true
		d.NewSanity = new.Sanity
	}

	return d
}

func sameSanity(a, b SanityConfig) bool {
	return a.IsEnabled() == b.IsEnabled() &&
		a.DecayInterval == b.DecayInterval &&
		a.Floor == b.Floor
}
