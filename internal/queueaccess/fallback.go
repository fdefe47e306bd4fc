package queueaccess

import (
	"errors"
	"fmt"

	"autoingest/internal/ipc"
	"autoingest/internal/queue"
)

// Session pairs an Access with the cleanup for whichever backend it opened.
type Session struct {
	Access Access
	close  func() error
}

// Close releases the IPC connection or the store handle.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback prefers the daemon and opens the database directly when
// the daemon cannot be dialed. If both fail the error carries both causes.
func OpenWithFallback(
	dial func() (*ipc.Client, error),
	openStore func() (*queue.Store, error),
) (Session, error) {
	var dialErr error
	if dial != nil {
		client, err := dial()
		if err == nil {
			return Session{Access: NewIPCAccess(client), close: client.Close}, nil
		}
		dialErr = err
	}

	if openStore == nil {
		return Session{}, errors.Join(dialErr, errors.New("open queue store: no store opener configured"))
	}
	store, err := openStore()
	if err != nil {
		err = fmt.Errorf("open queue store: %w", err)
		if dialErr != nil {
			err = fmt.Errorf("daemon unreachable (%v); %w", dialErr, err)
		}
		return Session{}, err
	}
	return Session{Access: NewStoreAccess(store), close: store.Close}, nil
}
