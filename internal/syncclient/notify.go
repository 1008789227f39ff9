package syncclient

// Kind classifies a user-facing notification.
type Kind int

const (
	Info Kind = iota
	Success
	Error
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Notifier presents transient messages to the user. The client decides when
// to notify; the Notifier decides how.
type Notifier interface {
	Notify(kind Kind, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind Kind, message string)

func (f NotifierFunc) Notify(kind Kind, message string) { f(kind, message) }

type discardNotifier struct{}

func (discardNotifier) Notify(Kind, string) {}

// User-facing messages.
const (
	MsgLoadFailed   = "Failed to load tasks. Please try again."
	MsgToggleFailed = "Failed to update task. Please try again."
	MsgPopFailed    = "Failed to pop task. Please try again."
	MsgTaskPopped   = "Task completed and removed from stack"
	msgTaskAdded    = "New task added: "
)

type notification struct {
	kind    Kind
	message string
}
