package mailbox

import (
	"errors"
	"fmt"

	"github.com/emersion/go-imap/v2"
)

// ConfigError reports missing or invalid startup configuration. It is fatal:
// a process must not start serving with an incomplete Config.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config: " + e.Reason }

// ConnectionError reports a network or TLS failure while establishing the
// connection or mid-session, including command deadline expiry.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("connection: %s: %v", e.Op, e.Err) }

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError reports rejected credentials.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth: %v", e.Err) }

func (e *AuthError) Unwrap() error { return e.Err }

// StateError reports an operation invalid for the session's current state,
// such as listing messages before authenticating.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state: cannot %s while session is %s", e.Op, e.State)
}

// NotFoundError reports an absent folder or message.
type NotFoundError struct {
	Kind string // "mailbox" or "message"
	Name string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s %q", e.Kind, e.Name) }

// QuerySyntaxError reports a malformed search filter.
type QuerySyntaxError struct {
	Query  string
	Reason string
}

func (e *QuerySyntaxError) Error() string {
	return fmt.Sprintf("query syntax: %s in %q", e.Reason, e.Query)
}

// ProtocolError reports a malformed or unexpected server response.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err) }

func (e *ProtocolError) Unwrap() error { return e.Err }

// BusyError reports a second operation attempted while another is in flight
// on the same session.
type BusyError struct {
	Op string
}

func (e *BusyError) Error() string { return fmt.Sprintf("busy: %s: an operation is already in flight", e.Op) }

// Kind returns a short machine-readable name for the error's category, for
// dispatchers that report the error kind alongside the message.
func Kind(err error) string {
	var (
		configErr   *ConfigError
		connErr     *ConnectionError
		authErr     *AuthError
		stateErr    *StateError
		notFoundErr *NotFoundError
		queryErr    *QuerySyntaxError
		protoErr    *ProtocolError
		busyErr     *BusyError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &configErr):
		return "config"
	case errors.As(err, &connErr):
		return "connection"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &stateErr):
		return "state"
	case errors.As(err, &notFoundErr):
		return "not_found"
	case errors.As(err, &queryErr):
		return "query_syntax"
	case errors.As(err, &protoErr):
		return "protocol"
	case errors.As(err, &busyErr):
		return "busy"
	default:
		return "internal"
	}
}

// typed reports whether err is already one of the package's error types.
func typed(err error) bool {
	return err != nil && Kind(err) != "internal"
}

// authFailure reports whether a server status response indicates rejected
// credentials rather than a transport problem.
func authFailure(code imap.ResponseCode) bool {
	switch code {
	case imap.ResponseCodeAuthenticationFailed, imap.ResponseCodeAuthorizationFailed, imap.ResponseCodeExpired:
		return true
	}
	return false
}

// missingMailbox reports whether a server status response indicates the
// referenced mailbox does not exist.
func missingMailbox(code imap.ResponseCode) bool {
	return code == imap.ResponseCodeNonExistent || code == imap.ResponseCodeTryCreate
}

// translateAuth maps a login/authenticate failure onto the typed error set.
// Tagged NO responses are credential rejections; everything else is a
// transport or protocol problem.
func translateAuth(err error) error {
	if err == nil {
		return nil
	}
	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		if imapErr.Type == imap.StatusResponseTypeNo || authFailure(imapErr.Code) {
			return &AuthError{Err: err}
		}
		return &ProtocolError{Op: "authenticate", Err: err}
	}
	return &ConnectionError{Op: "authenticate", Err: err}
}

// translate maps a protocol-client failure for op onto the typed error set.
// When notFound is non-nil, a NO response is treated as that entity being
// absent, matching how servers report unknown mailboxes and expired UIDs.
func translate(op string, err error, notFound *NotFoundError) error {
	if err == nil {
		return nil
	}
	if typed(err) {
		return err
	}
	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		if notFound != nil && (imapErr.Type == imap.StatusResponseTypeNo || missingMailbox(imapErr.Code)) {
			return notFound
		}
		return &ProtocolError{Op: op, Err: err}
	}
	return &ConnectionError{Op: op, Err: err}
}
