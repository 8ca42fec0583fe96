package mailbox

import (
	"context"
	"errors"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// fakeConn scripts the protocol surface for session tests.
type fakeConn struct {
	calls []string

	loginErr error
	authErr  error

	listed  []*imap.ListData
	listErr error

	statuses  map[string]*imap.StatusData
	statusErr error

	selected  map[string]*imap.SelectData
	selectErr map[string]error

	searchResult []imap.UID
	searchErr    error
	lastCriteria *imap.SearchCriteria

	summaries    []*imapclient.FetchMessageBuffer
	summariesErr error

	bodyBuf *imapclient.FetchMessageBuffer
	bodyRaw []byte
	bodyErr error

	storeErr  error
	moveErr   error
	lastMove  string
	storeOps  []*imap.StoreFlags
	logoutErr error
	closed    bool
}

func (f *fakeConn) record(op string) { f.calls = append(f.calls, op) }

func (f *fakeConn) login(username, password string) error {
	f.record("login")
	return f.loginErr
}

func (f *fakeConn) authenticate(username, accessToken string) error {
	f.record("authenticate")
	return f.authErr
}

func (f *fakeConn) list() ([]*imap.ListData, error) {
	f.record("list")
	return f.listed, f.listErr
}

func (f *fakeConn) status(mailbox string) (*imap.StatusData, error) {
	f.record("status " + mailbox)
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if data, ok := f.statuses[mailbox]; ok {
		return data, nil
	}
	return &imap.StatusData{Mailbox: mailbox}, nil
}

func (f *fakeConn) selectMailbox(mailbox string) (*imap.SelectData, error) {
	f.record("select " + mailbox)
	if err, ok := f.selectErr[mailbox]; ok {
		return nil, err
	}
	if data, ok := f.selected[mailbox]; ok {
		return data, nil
	}
	return &imap.SelectData{}, nil
}

func (f *fakeConn) searchUIDs(criteria *imap.SearchCriteria) ([]imap.UID, error) {
	f.record("search")
	f.lastCriteria = criteria
	return f.searchResult, f.searchErr
}

func (f *fakeConn) fetchSummaries(uids imap.UIDSet) ([]*imapclient.FetchMessageBuffer, error) {
	f.record("fetch summaries")
	return f.summaries, f.summariesErr
}

func (f *fakeConn) fetchBody(uid imap.UID) (*imapclient.FetchMessageBuffer, []byte, error) {
	f.record("fetch body")
	return f.bodyBuf, f.bodyRaw, f.bodyErr
}

func (f *fakeConn) store(uids imap.UIDSet, flags *imap.StoreFlags) error {
	f.record("store")
	f.storeOps = append(f.storeOps, flags)
	return f.storeErr
}

func (f *fakeConn) move(uids imap.UIDSet, mailbox string) error {
	f.record("move " + mailbox)
	f.lastMove = mailbox
	return f.moveErr
}

func (f *fakeConn) expunge() error {
	f.record("expunge")
	return nil
}

func (f *fakeConn) logout() error {
	f.record("logout")
	return f.logoutErr
}

func (f *fakeConn) close() error {
	f.record("close")
	f.closed = true
	return nil
}

func testSession(fc *fakeConn) *Session {
	s := NewSession(Config{Host: "imap.x.com", Username: "a@x.com", Password: "p"})
	s.dial = func(ctx context.Context, cfg Config, sessionID string) (conn, error) {
		return fc, nil
	}
	return s
}

func TestConnectAdvancesToAuthenticated(t *testing.T) {
	fc := &fakeConn{}
	s := testSession(fc)

	if got := s.State(); got != StateDisconnected {
		t.Fatalf("State() = %v before connect, want %v", got, StateDisconnected)
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got := s.State(); got != StateAuthenticated {
		t.Fatalf("State() = %v after connect, want %v", got, StateAuthenticated)
	}

	// Idempotent: a second connect performs no additional login.
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() second call error = %v", err)
	}
	logins := 0
	for _, c := range fc.calls {
		if c == "login" {
			logins++
		}
	}
	if logins != 1 {
		t.Errorf("login called %d times, want 1", logins)
	}
}

func TestConnectRejectedCredentials(t *testing.T) {
	fc := &fakeConn{
		loginErr: &imap.Error{Type: imap.StatusResponseTypeNo, Code: imap.ResponseCodeAuthenticationFailed, Text: "bad credentials"},
	}
	s := testSession(fc)

	err := s.Connect(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Connect() error = %v, want AuthError", err)
	}
	if got := s.State(); got != StateDisconnected {
		t.Errorf("State() = %v after rejected credentials, want %v", got, StateDisconnected)
	}
	if !fc.closed {
		t.Error("connection not torn down after rejected credentials")
	}
}

func TestConnectDialFailure(t *testing.T) {
	s := NewSession(Config{Host: "imap.x.com", Username: "a@x.com", Password: "p"})
	dialErr := errors.New("connection refused")
	s.dial = func(ctx context.Context, cfg Config, sessionID string) (conn, error) {
		return nil, dialErr
	}

	err := s.Connect(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect() error = %v, want ConnectionError", err)
	}
	if !errors.Is(err, dialErr) {
		t.Errorf("ConnectionError does not wrap the dial error: %v", err)
	}
}

func TestOperationsRequireAuthentication(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		op   func(s *Session) error
	}{
		{"ListFolders", func(s *Session) error { _, err := s.ListFolders(ctx); return err }},
		{"SelectFolder", func(s *Session) error { _, err := s.SelectFolder(ctx, "INBOX"); return err }},
		{"ListMessages", func(s *Session) error { _, err := s.ListMessages(ctx, "INBOX", Range{}, ""); return err }},
		{"UnseenMessages", func(s *Session) error { _, err := s.UnseenMessages(ctx, "INBOX"); return err }},
		{"FetchMessage", func(s *Session) error { _, err := s.FetchMessage(ctx, "INBOX", 1); return err }},
		{"MarkSeen", func(s *Session) error { return s.MarkSeen(ctx, "INBOX", 1) }},
		{"DeleteMessage", func(s *Session) error { return s.DeleteMessage(ctx, "INBOX", 1) }},
		{"MoveMessage", func(s *Session) error { return s.MoveMessage(ctx, "INBOX", 1, "Archive") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSession(&fakeConn{})
			err := tt.op(s)
			var stateErr *StateError
			if !errors.As(err, &stateErr) {
				t.Fatalf("%s on disconnected session: error = %v, want StateError", tt.name, err)
			}
		})
	}
}

func TestBusySession(t *testing.T) {
	s := testSession(&fakeConn{})

	// Simulate an in-flight operation holding the session.
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.ListFolders(context.Background())
	var busyErr *BusyError
	if !errors.As(err, &busyErr) {
		t.Fatalf("ListFolders() on busy session: error = %v, want BusyError", err)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	fc := &fakeConn{}
	s := testSession(fc)
	ctx := context.Background()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := s.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if err := s.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect() second call error = %v", err)
	}
	if got := s.State(); got != StateDisconnected {
		t.Errorf("State() = %v after disconnect, want %v", got, StateDisconnected)
	}
}

func TestDisconnectSuppressesLogoutFailure(t *testing.T) {
	fc := &fakeConn{logoutErr: errors.New("broken pipe")}
	s := testSession(fc)
	ctx := context.Background()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := s.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect() error = %v, want nil despite logout failure", err)
	}
	if !fc.closed {
		t.Error("connection not closed after failed logout")
	}
}

func TestConnectUsesXOAuth2WhenTokenSet(t *testing.T) {
	fc := &fakeConn{}
	s := testSession(fc)
	s.cfg.AccessToken = "ya29.token"

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	for _, c := range fc.calls {
		if c == "login" {
			t.Fatal("login used despite access token being configured")
		}
	}
	found := false
	for _, c := range fc.calls {
		if c == "authenticate" {
			found = true
		}
	}
	if !found {
		t.Fatal("authenticate not called with access token configured")
	}
}
