package mailbox

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/xid"
)

// State is a session's position in its connection lifecycle. It only ever
// advances Disconnected → Connected → Authenticated → Selected; mailbox
// operations in the first two states fail with a StateError.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateAuthenticated
	StateSelected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateSelected:
		return "selected"
	default:
		return "unknown"
	}
}

// Session owns one authenticated IMAP connection. Operations on a Session
// are serialized: a second call while one is in flight fails with BusyError.
// A Session is created disconnected; Connect dials and authenticates, and is
// idempotent once authenticated.
//
// The context passed to an operation covers connection establishment only;
// it does not cancel a command already in flight. In-flight commands are
// bounded by CommandTimeout (or Config.CommandTimeout), surfacing expiry as
// a ConnectionError.
type Session struct {
	cfg  Config
	id   string
	dial func(ctx context.Context, cfg Config, sessionID string) (conn, error)

	mu     sync.Mutex
	conn   conn
	state  State
	folder string
}

// NewSession returns a disconnected session for the given configuration.
// No I/O happens until Connect or the first operation.
func NewSession(cfg Config) *Session {
	return &Session{
		cfg:  cfg,
		id:   strings.ToUpper(xid.New().String()),
		dial: dialIMAP,
	}
}

// ID returns the session's correlation ID used in log output.
func (s *Session) ID() string { return s.id }

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Folder reports the currently selected folder, or "" if none is selected.
func (s *Session) Folder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folder
}

// begin claims the session for one operation. It fails fast with BusyError
// instead of queueing, so a stuck network call cannot pile up callers.
func (s *Session) begin(op string) error {
	if !s.mu.TryLock() {
		return &BusyError{Op: op}
	}
	return nil
}

// Connect dials the configured server and authenticates. It is idempotent
// once the session is authenticated. A rejected credential tears the
// connection back down: no session is left half-authenticated.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.begin("connect"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.state >= StateAuthenticated {
		return nil
	}

	if s.conn == nil {
		debugLog(s.id, "", "establishing connection", "addr", s.cfg.Addr())
		c, err := s.dial(ctx, s.cfg, s.id)
		if err != nil {
			errorLog(s.id, "", "failed to connect", "error", err)
			return &ConnectionError{Op: "dial " + s.cfg.Addr(), Err: err}
		}
		s.conn = c
		s.state = StateConnected
	}

	var err error
	if s.cfg.AccessToken != "" {
		err = s.conn.authenticate(s.cfg.Username, s.cfg.AccessToken)
	} else {
		err = s.conn.login(s.cfg.Username, s.cfg.Password)
	}
	if err != nil {
		errorLog(s.id, "", "authentication failed", "user", s.cfg.Username)
		_ = s.conn.close()
		s.conn = nil
		s.state = StateDisconnected
		return translateAuth(err)
	}

	s.state = StateAuthenticated
	debugLog(s.id, "", "authenticated", "user", s.cfg.Username)
	return nil
}

// Disconnect logs out and releases the connection. It is idempotent and
// always succeeds locally: the remote close is best effort since the
// connection is being discarded anyway.
func (s *Session) Disconnect(ctx context.Context) error {
	if err := s.begin("disconnect"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	if err := s.conn.logout(); err != nil {
		warnLog(s.id, s.folder, "logout failed, closing anyway", "error", err)
	}
	if err := s.conn.close(); err != nil {
		warnLog(s.id, s.folder, "close failed", "error", err)
	}

	s.conn = nil
	s.state = StateDisconnected
	s.folder = ""
	debugLog(s.id, "", "disconnected")
	return nil
}

// requireAuth guards mailbox operations against unauthenticated sessions.
// Callers must hold the session lock.
func (s *Session) requireAuth(op string) error {
	if s.state < StateAuthenticated {
		return &StateError{Op: op, State: s.state}
	}
	return nil
}

// selectLocked issues SELECT and moves the session to Selected(folder). A
// failed SELECT leaves no mailbox selected (per the protocol), so the
// session drops back to Authenticated.
func (s *Session) selectLocked(folder string) (FolderSummary, error) {
	data, err := s.conn.selectMailbox(folder)
	if err != nil {
		s.state = StateAuthenticated
		s.folder = ""
		return FolderSummary{}, translate("select "+folder, err, &NotFoundError{Kind: "mailbox", Name: folder})
	}

	s.state = StateSelected
	s.folder = folder

	summary := FolderSummary{
		Name:  folder,
		Count: data.NumMessages,
	}

	// Unseen count comes from STATUS; SELECT does not report it. Best
	// effort: a server refusing STATUS on the selected mailbox still
	// yields a usable summary.
	if status, err := s.conn.status(folder); err == nil {
		if status.NumUnseen != nil {
			summary.Unseen = *status.NumUnseen
		}
	} else {
		warnLog(s.id, folder, "status after select failed", "error", err)
	}

	debugLog(s.id, folder, "folder selected", "count", summary.Count, "unseen", summary.Unseen)
	return summary, nil
}

// ensureSelected makes folder the selected mailbox, selecting it only when
// the session is not already there. It never re-dials or re-authenticates.
// Callers must hold the session lock.
func (s *Session) ensureSelected(op, folder string) error {
	if err := s.requireAuth(op); err != nil {
		return err
	}
	if folder == "" {
		if s.state == StateSelected {
			return nil
		}
		return &StateError{Op: op, State: s.state}
	}
	if s.state == StateSelected && s.folder == folder {
		return nil
	}
	_, err := s.selectLocked(folder)
	return err
}
