package mailbox

import (
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		check func(t *testing.T, c *imap.SearchCriteria)
	}{
		{
			name:  "empty matches everything",
			query: "",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.Header) != 0 || len(c.Flag) != 0 || len(c.NotFlag) != 0 {
					t.Errorf("criteria = %+v, want empty", c)
				}
			},
		},
		{
			name:  "ALL matches everything",
			query: "ALL",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.Header) != 0 || len(c.Flag) != 0 {
					t.Errorf("criteria = %+v, want empty", c)
				}
			},
		},
		{
			name:  "from",
			query: "FROM alice@example.com",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.Header) != 1 || c.Header[0].Key != "From" || c.Header[0].Value != "alice@example.com" {
					t.Errorf("Header = %v, want From alice@example.com", c.Header)
				}
			},
		},
		{
			name:  "quoted value with spaces",
			query: `SUBJECT "quarterly report"`,
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.Header) != 1 || c.Header[0].Key != "Subject" || c.Header[0].Value != "quarterly report" {
					t.Errorf("Header = %v, want Subject \"quarterly report\"", c.Header)
				}
			},
		},
		{
			name:  "escaped quote inside quoted value",
			query: `SUBJECT "say \"hi\""`,
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.Header) != 1 || c.Header[0].Value != `say "hi"` {
					t.Errorf("Header = %v, want the unescaped value", c.Header)
				}
			},
		},
		{
			name:  "arbitrary header",
			query: "HEADER Message-ID <abc@x>",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.Header) != 1 || c.Header[0].Key != "Message-ID" || c.Header[0].Value != "<abc@x>" {
					t.Errorf("Header = %v, want Message-ID <abc@x>", c.Header)
				}
			},
		},
		{
			name:  "flags",
			query: "UNSEEN FLAGGED",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.NotFlag) != 1 || c.NotFlag[0] != imap.FlagSeen {
					t.Errorf("NotFlag = %v, want [\\Seen]", c.NotFlag)
				}
				if len(c.Flag) != 1 || c.Flag[0] != imap.FlagFlagged {
					t.Errorf("Flag = %v, want [\\Flagged]", c.Flag)
				}
			},
		},
		{
			name:  "recent",
			query: "RECENT",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.Flag) != 1 || c.Flag[0] != imap.Flag(`\Recent`) {
					t.Errorf("Flag = %v, want [\\Recent]", c.Flag)
				}
			},
		},
		{
			name:  "negated recent",
			query: "NOT RECENT",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.Not) != 1 || len(c.Not[0].Flag) != 1 || c.Not[0].Flag[0] != imap.Flag(`\Recent`) {
					t.Errorf("Not = %+v, want one \\Recent criterion", c.Not)
				}
			},
		},
		{
			name:  "keyword",
			query: "KEYWORD $Important UNKEYWORD $Junk",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.Flag) != 1 || c.Flag[0] != imap.Flag("$Important") {
					t.Errorf("Flag = %v, want [$Important]", c.Flag)
				}
				if len(c.NotFlag) != 1 || c.NotFlag[0] != imap.Flag("$Junk") {
					t.Errorf("NotFlag = %v, want [$Junk]", c.NotFlag)
				}
			},
		},
		{
			name:  "dates",
			query: "SINCE 1-Jun-2025 BEFORE 01-Jul-2025",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC); !c.Since.Equal(want) {
					t.Errorf("Since = %v, want %v", c.Since, want)
				}
				if want := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC); !c.Before.Equal(want) {
					t.Errorf("Before = %v, want %v", c.Before, want)
				}
			},
		},
		{
			name:  "sizes",
			query: "LARGER 1024 SMALLER 1048576",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if c.Larger != 1024 || c.Smaller != 1048576 {
					t.Errorf("sizes = (%d, %d), want (1024, 1048576)", c.Larger, c.Smaller)
				}
			},
		},
		{
			name:  "uid set",
			query: "UID 1:5,8",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.UID) != 1 {
					t.Fatalf("UID = %v, want one set", c.UID)
				}
				set := c.UID[0]
				for _, uid := range []imap.UID{1, 3, 5, 8} {
					if !set.Contains(uid) {
						t.Errorf("set %v does not contain %d", set, uid)
					}
				}
				if set.Contains(7) {
					t.Errorf("set %v contains 7", set)
				}
			},
		},
		{
			name:  "not",
			query: "NOT FROM noreply@example.com",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.Not) != 1 || len(c.Not[0].Header) != 1 || c.Not[0].Header[0].Key != "From" {
					t.Errorf("Not = %v, want one From criterion", c.Not)
				}
			},
		},
		{
			name:  "or",
			query: "OR SEEN FLAGGED",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.Or) != 1 {
					t.Fatalf("Or = %v, want one pair", c.Or)
				}
				left, right := c.Or[0][0], c.Or[0][1]
				if len(left.Flag) != 1 || left.Flag[0] != imap.FlagSeen {
					t.Errorf("Or left = %+v, want \\Seen", left)
				}
				if len(right.Flag) != 1 || right.Flag[0] != imap.FlagFlagged {
					t.Errorf("Or right = %+v, want \\Flagged", right)
				}
			},
		},
		{
			name:  "grouped terms under not",
			query: `NOT (FROM noreply@example.com SUBJECT digest)`,
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.Not) != 1 {
					t.Fatalf("Not = %v, want one group", c.Not)
				}
				if len(c.Not[0].Header) != 2 {
					t.Errorf("grouped headers = %v, want both terms", c.Not[0].Header)
				}
			},
		},
		{
			name:  "lowercase terms accepted",
			query: "unseen from alice@example.com",
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.NotFlag) != 1 || len(c.Header) != 1 {
					t.Errorf("criteria = %+v, want unseen plus from", c)
				}
			},
		},
		{
			name:  "body and text",
			query: `BODY invoice TEXT "pay now"`,
			check: func(t *testing.T, c *imap.SearchCriteria) {
				if len(c.Body) != 1 || c.Body[0] != "invoice" {
					t.Errorf("Body = %v, want [invoice]", c.Body)
				}
				if len(c.Text) != 1 || c.Text[0] != "pay now" {
					t.Errorf("Text = %v, want [pay now]", c.Text)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			criteria, err := ParseFilter(tt.query)
			if err != nil {
				t.Fatalf("ParseFilter(%q) error = %v", tt.query, err)
			}
			tt.check(t, criteria)
		})
	}
}

func TestParseFilterRejects(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"unknown term", "FORM alice@example.com"},
		{"missing value", "FROM"},
		{"missing second header value", "HEADER Message-ID"},
		{"unterminated quote", `SUBJECT "oops`},
		{"unbalanced open paren", "(SEEN"},
		{"unbalanced close paren", "SEEN)"},
		{"bad date", "SINCE yesterday"},
		{"bad size", "LARGER big"},
		{"negative size", "LARGER -1"},
		{"bad uid set", "UID 1:x"},
		{"zero uid", "UID 0"},
		{"or missing operand", "OR SEEN"},
		{"not missing operand", "NOT"},
		{"quoted string as term", `"SEEN"`},
		{"paren as value", "FROM )"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilter(tt.query)
			var queryErr *QuerySyntaxError
			if !errors.As(err, &queryErr) {
				t.Fatalf("ParseFilter(%q) error = %v, want QuerySyntaxError", tt.query, err)
			}
			if queryErr.Query != tt.query {
				t.Errorf("QuerySyntaxError.Query = %q, want %q", queryErr.Query, tt.query)
			}
		})
	}
}
