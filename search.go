package mailbox

import (
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

// searchDateLayout is the date form the protocol's search syntax uses,
// e.g. "1-Jan-2012" or "01-Jan-2012".
const searchDateLayout = "2-Jan-2006"

// ParseFilter compiles a search filter written in the protocol's native
// search syntax into criteria. Supported terms:
//
//	FROM / TO / CC / BCC / SUBJECT <value>
//	HEADER <field> <value>
//	BODY / TEXT <value>
//	SINCE / BEFORE / SENTSINCE / SENTBEFORE <1-Jan-2012>
//	LARGER / SMALLER <bytes>
//	KEYWORD / UNKEYWORD <keyword>
//	SEEN UNSEEN ANSWERED UNANSWERED FLAGGED UNFLAGGED
//	DELETED UNDELETED DRAFT UNDRAFT RECENT ALL
//	UID <set>            e.g. 1:5,8
//	NOT <term>
//	OR <term> <term>
//	( <terms...> )       grouped, implicitly ANDed
//
// Top-level terms are ANDed. Values with spaces must be double-quoted. An
// empty filter matches everything. Malformed input fails with
// QuerySyntaxError.
func ParseFilter(query string) (*imap.SearchCriteria, error) {
	p := &filterParser{query: query}
	if err := p.tokenize(); err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{}
	for !p.done() {
		if p.peek() == ")" {
			return nil, p.errf("unbalanced )")
		}
		if err := p.parseTerm(criteria); err != nil {
			return nil, err
		}
	}
	return criteria, nil
}

type filterParser struct {
	query  string
	tokens []string
	quoted []bool
	pos    int
}

func (p *filterParser) errf(reason string) error {
	return &QuerySyntaxError{Query: p.query, Reason: reason}
}

// tokenize splits the query into atoms, quoted strings, and parentheses.
func (p *filterParser) tokenize() error {
	var atom strings.Builder
	flush := func() {
		if atom.Len() != 0 {
			p.tokens = append(p.tokens, atom.String())
			p.quoted = append(p.quoted, false)
			atom.Reset()
		}
	}

	runes := []rune(p.query)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case ' ', '\t', '\r', '\n':
			flush()
		case '(', ')':
			flush()
			p.tokens = append(p.tokens, string(r))
			p.quoted = append(p.quoted, false)
		case '"':
			flush()
			var str strings.Builder
			closed := false
			for i++; i < len(runes); i++ {
				if runes[i] == '\\' && i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '\\') {
					i++
					str.WriteRune(runes[i])
					continue
				}
				if runes[i] == '"' {
					closed = true
					break
				}
				str.WriteRune(runes[i])
			}
			if !closed {
				return p.errf("unterminated quoted string")
			}
			p.tokens = append(p.tokens, str.String())
			p.quoted = append(p.quoted, true)
		default:
			atom.WriteRune(r)
		}
	}
	flush()
	return nil
}

func (p *filterParser) done() bool { return p.pos >= len(p.tokens) }

func (p *filterParser) peek() string {
	if p.done() {
		return ""
	}
	return p.tokens[p.pos]
}

// next returns the next token and whether it was quoted in the input.
func (p *filterParser) next() (string, bool) {
	tok, quoted := p.tokens[p.pos], p.quoted[p.pos]
	p.pos++
	return tok, quoted
}

// value consumes the argument following the named term.
func (p *filterParser) value(term string) (string, error) {
	if p.done() {
		return "", p.errf("missing value after " + term)
	}
	tok, quoted := p.next()
	if !quoted && (tok == "(" || tok == ")") {
		return "", p.errf("missing value after " + term)
	}
	return tok, nil
}

func (p *filterParser) date(term string) (time.Time, error) {
	v, err := p.value(term)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(searchDateLayout, v)
	if err != nil {
		return time.Time{}, p.errf("bad date " + strconv.Quote(v) + " after " + term + ", want e.g. 01-Jan-2012")
	}
	return t, nil
}

// parseTerm consumes one term and folds it into criteria.
func (p *filterParser) parseTerm(criteria *imap.SearchCriteria) error {
	if p.done() {
		return p.errf("missing search term")
	}

	tok, quoted := p.next()
	if quoted {
		return p.errf("quoted string " + strconv.Quote(tok) + " in place of a search term")
	}

	switch key := strings.ToUpper(tok); key {
	case "(":
		sub := &imap.SearchCriteria{}
		for {
			if p.done() {
				return p.errf("unbalanced (")
			}
			if p.peek() == ")" {
				p.next()
				break
			}
			if err := p.parseTerm(sub); err != nil {
				return err
			}
		}
		criteria.And(sub)

	case "NOT":
		sub := &imap.SearchCriteria{}
		if err := p.parseTerm(sub); err != nil {
			return err
		}
		criteria.Not = append(criteria.Not, *sub)

	case "OR":
		left, right := &imap.SearchCriteria{}, &imap.SearchCriteria{}
		if err := p.parseTerm(left); err != nil {
			return err
		}
		if err := p.parseTerm(right); err != nil {
			return err
		}
		criteria.Or = append(criteria.Or, [2]imap.SearchCriteria{*left, *right})

	case "ALL":
		// matches everything, nothing to add

	case "SEEN":
		criteria.Flag = append(criteria.Flag, imap.FlagSeen)
	case "UNSEEN":
		criteria.NotFlag = append(criteria.NotFlag, imap.FlagSeen)
	case "ANSWERED":
		criteria.Flag = append(criteria.Flag, imap.FlagAnswered)
	case "UNANSWERED":
		criteria.NotFlag = append(criteria.NotFlag, imap.FlagAnswered)
	case "FLAGGED":
		criteria.Flag = append(criteria.Flag, imap.FlagFlagged)
	case "UNFLAGGED":
		criteria.NotFlag = append(criteria.NotFlag, imap.FlagFlagged)
	case "DELETED":
		criteria.Flag = append(criteria.Flag, imap.FlagDeleted)
	case "UNDELETED":
		criteria.NotFlag = append(criteria.NotFlag, imap.FlagDeleted)
	case "DRAFT":
		criteria.Flag = append(criteria.Flag, imap.FlagDraft)
	case "UNDRAFT":
		criteria.NotFlag = append(criteria.NotFlag, imap.FlagDraft)
	case "RECENT":
		criteria.Flag = append(criteria.Flag, imap.Flag(`\Recent`))

	case "KEYWORD", "UNKEYWORD":
		v, err := p.value(key)
		if err != nil {
			return err
		}
		if key == "KEYWORD" {
			criteria.Flag = append(criteria.Flag, imap.Flag(v))
		} else {
			criteria.NotFlag = append(criteria.NotFlag, imap.Flag(v))
		}

	case "FROM", "TO", "CC", "BCC", "SUBJECT":
		v, err := p.value(key)
		if err != nil {
			return err
		}
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key:   headerFieldName(key),
			Value: v,
		})

	case "HEADER":
		field, err := p.value("HEADER")
		if err != nil {
			return err
		}
		v, err := p.value("HEADER " + field)
		if err != nil {
			return err
		}
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: field, Value: v})

	case "BODY":
		v, err := p.value("BODY")
		if err != nil {
			return err
		}
		criteria.Body = append(criteria.Body, v)

	case "TEXT":
		v, err := p.value("TEXT")
		if err != nil {
			return err
		}
		criteria.Text = append(criteria.Text, v)

	case "SINCE":
		t, err := p.date("SINCE")
		if err != nil {
			return err
		}
		criteria.Since = t
	case "BEFORE":
		t, err := p.date("BEFORE")
		if err != nil {
			return err
		}
		criteria.Before = t
	case "SENTSINCE":
		t, err := p.date("SENTSINCE")
		if err != nil {
			return err
		}
		criteria.SentSince = t
	case "SENTBEFORE":
		t, err := p.date("SENTBEFORE")
		if err != nil {
			return err
		}
		criteria.SentBefore = t

	case "LARGER", "SMALLER":
		v, err := p.value(key)
		if err != nil {
			return err
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return p.errf("bad size " + strconv.Quote(v) + " after " + key)
		}
		if key == "LARGER" {
			criteria.Larger = n
		} else {
			criteria.Smaller = n
		}

	case "UID":
		v, err := p.value("UID")
		if err != nil {
			return err
		}
		set, err := parseUIDSet(v)
		if err != nil {
			return p.errf("bad UID set " + strconv.Quote(v))
		}
		criteria.UID = append(criteria.UID, set)

	default:
		return p.errf("unknown search term " + strconv.Quote(tok))
	}

	return nil
}

func headerFieldName(key string) string {
	switch key {
	case "FROM":
		return "From"
	case "TO":
		return "To"
	case "CC":
		return "Cc"
	case "BCC":
		return "Bcc"
	default:
		return "Subject"
	}
}

// parseUIDSet parses "1", "1:5" and comma-joined combinations thereof.
func parseUIDSet(s string) (imap.UIDSet, error) {
	var set imap.UIDSet
	for _, part := range strings.Split(s, ",") {
		lo, hi, ok := strings.Cut(part, ":")
		start, err := strconv.ParseUint(lo, 10, 32)
		if err != nil || start == 0 {
			return nil, &QuerySyntaxError{Query: s, Reason: "bad UID " + strconv.Quote(lo)}
		}
		if !ok {
			set.AddNum(imap.UID(start))
			continue
		}
		stop, err := strconv.ParseUint(hi, 10, 32)
		if err != nil || stop == 0 {
			return nil, &QuerySyntaxError{Query: s, Reason: "bad UID " + strconv.Quote(hi)}
		}
		set.AddRange(imap.UID(start), imap.UID(stop))
	}
	return set, nil
}
