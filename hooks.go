package memq

import "fmt"

// DeadLetterHook is invoked after a message has been moved to the
// dead-letter sink. Hooks run on the dispatcher goroutine and should return
// quickly.
type DeadLetterHook func(d DeadLetter)

// LogDeadLetterHook logs every dead-lettered message
func LogDeadLetterHook(log Logger) DeadLetterHook {
	return func(d DeadLetter) {
		log.Error(fmt.Sprintf("memq(%s): message %s dead-lettered: %s", d.Message.Channel, d.Message.ID, d.Reason))
	}
}

// CombineDeadLetterHooks combines multiple hooks by calling them sequentially
func CombineDeadLetterHooks(hooks ...DeadLetterHook) DeadLetterHook {
	return func(d DeadLetter) {
		for _, hook := range hooks {
			hook(d)
		}
	}
}
