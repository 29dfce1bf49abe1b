package auditlog

// NoopLogger discards every entry. It is the default Logger when no
// audit log path is configured.
type NoopLogger struct{}

var _ Logger = NoopLogger{}

// NewNoopLogger returns a Logger that discards all entries.
func NewNoopLogger() NoopLogger { return NoopLogger{} }

func (NoopLogger) Log(Entry) {}
func (NoopLogger) Close() error { return nil }
