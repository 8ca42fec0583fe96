package mailbox

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2"
)

// FolderSummary is a read-only projection of one folder's server state,
// recomputed on every request.
type FolderSummary struct {
	Name       string
	Delimiter  string
	Attributes []string
	Count      uint32
	Unseen     uint32
}

func (f FolderSummary) String() string {
	return fmt.Sprintf("%s (%d messages, %d unseen)", f.Name, f.Count, f.Unseen)
}

// ListFolders returns every selectable folder with its message and unseen
// counts. Folders flagged \Noselect are containers only and are omitted.
func (s *Session) ListFolders(ctx context.Context) ([]FolderSummary, error) {
	if err := s.begin("list folders"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if err := s.requireAuth("list folders"); err != nil {
		return nil, err
	}

	listed, err := s.conn.list()
	if err != nil {
		return nil, translate("list", err, nil)
	}

	folders := make([]FolderSummary, 0, len(listed))
	for _, data := range listed {
		if nonSelectable(data.Attrs) {
			continue
		}

		summary := FolderSummary{
			Name:      data.Mailbox,
			Delimiter: delimString(data.Delim),
		}
		for _, attr := range data.Attrs {
			summary.Attributes = append(summary.Attributes, string(attr))
		}

		// Counts come from a per-folder STATUS. A folder that vanishes
		// between LIST and STATUS is skipped rather than failing the
		// whole listing.
		status, err := s.conn.status(data.Mailbox)
		if err != nil {
			warnLog(s.id, data.Mailbox, "status failed, skipping folder", "error", err)
			continue
		}
		if status.NumMessages != nil {
			summary.Count = *status.NumMessages
		}
		if status.NumUnseen != nil {
			summary.Unseen = *status.NumUnseen
		}

		folders = append(folders, summary)
	}

	debugLog(s.id, s.folder, "folders listed", "n", len(folders))
	return folders, nil
}

// SelectFolder makes folder the session's selected mailbox and returns its
// summary. Selecting an unknown folder fails with NotFoundError and leaves
// the session authenticated with no mailbox selected.
func (s *Session) SelectFolder(ctx context.Context, folder string) (FolderSummary, error) {
	if err := s.begin("select folder"); err != nil {
		return FolderSummary{}, err
	}
	defer s.mu.Unlock()

	if err := s.requireAuth("select folder"); err != nil {
		return FolderSummary{}, err
	}

	return s.selectLocked(folder)
}

func nonSelectable(attrs []imap.MailboxAttr) bool {
	for _, attr := range attrs {
		if attr == imap.MailboxAttrNoSelect {
			return true
		}
	}
	return false
}

func delimString(delim rune) string {
	if delim == 0 {
		return ""
	}
	return string(delim)
}
