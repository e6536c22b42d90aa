package stream

// Level classifies a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a message meant for the person operating the console.
// Persistent notifications describe a state that stays until acted upon;
// all others are transient.
type Notification struct {
	Level      Level
	Message    string
	Persistent bool
}

// Notifier surfaces notifications to the user.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

type discardNotifier struct{}

func (discardNotifier) Notify(Notification) {}

// ConnState is the connection state of the stream transport.
type ConnState string

const (
	StateIdle         ConnState = "idle"
	StateConnecting   ConnState = "connecting"
	StateOpen         ConnState = "open"
	StateReconnecting ConnState = "reconnecting"
	StateClosed       ConnState = "closed"
	StateFailed       ConnState = "failed"
)

var allStates = []string{
	string(StateIdle), string(StateConnecting), string(StateOpen),
	string(StateReconnecting), string(StateClosed), string(StateFailed),
}
