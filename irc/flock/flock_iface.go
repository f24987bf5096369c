package flock

// documentation for github.com/gofrs/flock incorrectly claims that
// Flock implements sync.Locker; it does not because the Unlock method
// has a return type (err).
type Flocker interface {
	Unlock() error
}

type noopFlocker struct{}

func (n *noopFlocker) Unlock() error {
	return nil
}

// LockPath returns the path of the lock file guarding the datastore at path.
func LockPath(datastorePath string) string {
	return datastorePath + ".lock"
}

// AcquireForDatastore locks the datastore at path. In-memory datastores
// need no lock.
func AcquireForDatastore(path string) (Flocker, error) {
	if path == "" || path == ":memory:" {
		return &noopFlocker{}, nil
	}
	return TryAcquireFlock(LockPath(path))
}
