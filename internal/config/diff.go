package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are applied; everything else
// that changed is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	MinConfidenceChanged bool
	NewMinConfidence     float64

	// RestartRequired names the YAML keys that changed but only take effect
	// after a restart.
	RestartRequired []string
}

// Changed reports whether the diff carries any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.MinConfidenceChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Learning.MinConfidence != new.Learning.MinConfidence {
		d.MinConfidenceChanged = true
		d.NewMinConfidence = new.Learning.MinConfidence
	}

	restart := func(key string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, key)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("server.max_text_bytes", old.Server.MaxTextBytes != new.Server.MaxTextBytes)
	restart("server.shutdown_timeout", old.Server.ShutdownTimeout != new.Server.ShutdownTimeout)
	restart("learning.alignment_threshold", old.Learning.AlignmentThreshold != new.Learning.AlignmentThreshold)
	restart("learning.correction_threshold", old.Learning.CorrectionThreshold != new.Learning.CorrectionThreshold)
	restart("learning.max_length_diff", old.Learning.MaxLengthDiff != new.Learning.MaxLengthDiff)
	restart("learning.load_policy", old.Learning.LoadPolicy != new.Learning.LoadPolicy)
	restart("storage", old.Storage != new.Storage)
	restart("telemetry", old.Telemetry != new.Telemetry)

	return d
}
