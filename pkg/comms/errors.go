package comms

import "fmt"

// InvalidKindError reports a send using a kind the sender role may not use.
// Validation happens at send time, so a rejected message never reaches disk.
type InvalidKindError struct {
	Role Role
	Kind Kind
}

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("role %s may not send %q messages (allowed: %v)",
		e.Role, e.Kind, AllowedKinds(e.Role))
}

// NotFoundError reports an archive or read targeting a message that is no
// longer in the inbox. Callers are expected to treat this as benign: the
// message was already consumed or archived by someone else.
type NotFoundError struct {
	Role     Role
	Filename string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("message %s not found in %s inbox", e.Filename, e.Role)
}
