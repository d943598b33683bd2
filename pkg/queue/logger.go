package queue

// Logger defines a simple logging interface to avoid a concrete logging
// dependency inside the package.
type Logger interface {
	Debug() LogEvent
	Info() LogEvent
	Warn() LogEvent
	Error() LogEvent
}

// LogEvent defines a simple log event interface.
type LogEvent interface {
	Msg(string)
	Err(error) LogEvent
	Str(string, string) LogEvent
	Int(string, int) LogEvent
}
