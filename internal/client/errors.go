package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRemoteCall matches every failure of a call to the game store, whether
// the request never completed or the store answered with a non-2xx status.
var ErrRemoteCall = errors.New("remote call failed")

// RemoteCallError describes one failed call to the game store.
type RemoteCallError struct {
	Op      string // e.g. "create game"
	Status  int    // HTTP status; 0 when no response was received
	Message string // server-provided error message, if any
	Err     error  // underlying transport or decoding error, if any
}

func (e *RemoteCallError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.Status, http.StatusText(e.Status), e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, http.StatusText(e.Status))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": " + ErrRemoteCall.Error()
}

// Is makes errors.Is(err, ErrRemoteCall) hold for every RemoteCallError.
func (e *RemoteCallError) Is(target error) bool {
	return target == ErrRemoteCall
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status of a failed call, or 0 if err is not a
// RemoteCallError or no response was received.
func StatusCode(err error) int {
	var rce *RemoteCallError
	if errors.As(err, &rce) {
		return rce.Status
	}
	return 0
}
