package comms

// Queue is the role-aware wrapper over the Store that the CLI and watchers
// use. It enforces the fixed worker<->orchestrator direction mapping: a
// message from one role always lands in the other role's inbox.
type Queue struct {
	store *Store
}

// NewQueue creates a Queue for the given task directory.
func NewQueue(taskDir string) *Queue {
	return &Queue{store: NewStore(taskDir)}
}

// Store exposes the underlying message store.
func (q *Queue) Store() *Store {
	return q.store
}

// Send validates and writes a message from the given role to its peer's
// inbox, returning the created filename.
func (q *Queue) Send(from Role, kind Kind, body string, priority Priority) (string, error) {
	return q.store.Write(from, from.Peer(), kind, body, priority)
}

// Read returns all pending messages in the role's inbox, in creation order.
func (q *Queue) Read(role Role) ([]Message, error) {
	return q.store.Read(role)
}

// Archive moves a consumed message out of the role's inbox. A NotFoundError
// means someone archived it first; callers treat that as a no-op.
func (q *Queue) Archive(role Role, filename string) error {
	return q.store.Archive(role, filename)
}

// HasPending reports whether the role's inbox contains any messages.
func (q *Queue) HasPending(role Role) (bool, error) {
	handles, err := q.store.List(role)
	if err != nil {
		return false, err
	}
	return len(handles) > 0, nil
}
