package core

// Person identifies the staff member a log entry is about.
type Person struct {
	ID       string
	Username string
	Email    string
}

// Logger is the diagnostics sink every service gets injected with.
// expected args: error, map[string]interface{}, Person
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
