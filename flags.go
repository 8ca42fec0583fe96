package mailbox

import "github.com/emersion/go-imap/v2"

// MessageFlags are the standard per-message markers maintained by the
// server. Keywords beyond the standard set are carried verbatim.
type MessageFlags struct {
	Seen     bool
	Answered bool
	Flagged  bool
	Deleted  bool
	Draft    bool
	Keywords []string
}

// flagsFrom reshapes a server flag list into MessageFlags.
func flagsFrom(list []imap.Flag) MessageFlags {
	var f MessageFlags
	for _, flag := range list {
		switch flag {
		case imap.FlagSeen:
			f.Seen = true
		case imap.FlagAnswered:
			f.Answered = true
		case imap.FlagFlagged:
			f.Flagged = true
		case imap.FlagDeleted:
			f.Deleted = true
		case imap.FlagDraft:
			f.Draft = true
		default:
			f.Keywords = append(f.Keywords, string(flag))
		}
	}
	return f
}

// List returns the flags in their server spelling, for serialization.
func (f MessageFlags) List() []string {
	var l []string
	if f.Seen {
		l = append(l, string(imap.FlagSeen))
	}
	if f.Answered {
		l = append(l, string(imap.FlagAnswered))
	}
	if f.Flagged {
		l = append(l, string(imap.FlagFlagged))
	}
	if f.Deleted {
		l = append(l, string(imap.FlagDeleted))
	}
	if f.Draft {
		l = append(l, string(imap.FlagDraft))
	}
	return append(l, f.Keywords...)
}
