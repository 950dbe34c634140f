// Package correlate classifies free-text administrator replies into
// structured intents. It is pure text analysis: locating the request a
// reply targets is the caller's job, this package only decides what the
// reply means once the target is known.
package correlate

import (
	"regexp"
	"strings"
)

// IntentKind enumerates the decisions a reply can express.
type IntentKind int

const (
	// IntentFreeTextStatus carries the reply verbatim as a status note,
	// with no balance effect and no lifecycle change.
	IntentFreeTextStatus IntentKind = iota

	// IntentApproveWithAmount approves the request and credits the
	// parsed amount.
	IntentApproveWithAmount

	// IntentApproveNoAmount approves the request without a credit.
	IntentApproveNoAmount

	// IntentReject rejects the request.
	IntentReject
)

// String returns a short stable name for the intent kind.
func (k IntentKind) String() string {
	switch k {
	case IntentApproveWithAmount:
		return "approve_with_amount"
	case IntentApproveNoAmount:
		return "approve_no_amount"
	case IntentReject:
		return "reject"
	default:
		return "status_text"
	}
}

// Intent is the structured reading of one reply.
type Intent struct {
	Kind IntentKind

	// Amount is the normalized decimal string parsed from the reply,
	// set only for IntentApproveWithAmount. Grouping separators are
	// stripped and a decimal comma is rewritten to a point, so the
	// value is always machine-parseable.
	Amount string

	// Text is the raw reply text, preserved for status notes.
	Text string
}

// TargetKind distinguishes the two request variants a reply can answer.
type TargetKind int

const (
	TargetOrder TargetKind = iota
	TargetCharge
)

// Target describes the request a reply was matched to.
type Target struct {
	Kind      TargetKind
	ProfileID string
}

// Parser turns reply text into intents. The keyword sets are
// configurable so the pattern vocabulary can be swapped without
// touching callers; the zero value is not usable, construct with New.
type Parser struct {
	accept  []string
	reject  []string
	markers []string
}

// Option configures a Parser.
type Option func(*Parser)

// WithAcceptKeywords replaces the approval keyword prefixes.
func WithAcceptKeywords(words ...string) Option {
	return func(p *Parser) { p.accept = words }
}

// WithRejectKeywords replaces the rejection keyword prefixes.
func WithRejectKeywords(words ...string) Option {
	return func(p *Parser) { p.reject = words }
}

// WithAmountMarkers replaces the phrases that mark a reply as carrying
// a credit amount.
func WithAmountMarkers(words ...string) Option {
	return func(p *Parser) { p.markers = words }
}

// New returns a Parser with the default Arabic vocabulary.
func New(opts ...Option) *Parser {
	p := &Parser{
		accept:  []string{"تم"},
		reject:  []string{"مرفوض"},
		markers: []string{"الرصيد"},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// amountPattern matches the first numeric token in a reply. The token
// must start with a digit so punctuation adjacent to keywords is not
// mistaken for a number.
var amountPattern = regexp.MustCompile(`[0-9][0-9.,]*`)

// Parse classifies text against the target it was matched to.
//
// A credit amount is accepted only when an amount marker is present
// and, for charges, the reply restates the profile identifier. The
// restatement rule guards against an administrator crediting the wrong
// account by replying to the wrong notification. A reply that names an
// amount but fails those checks degrades to the keyword rules, and a
// reply matching no rule at all becomes a verbatim status note.
func (p *Parser) Parse(text string, target Target) Intent {
	trimmed := strings.TrimSpace(text)

	if amount := p.parseAmount(trimmed, target); amount != "" {
		return Intent{Kind: IntentApproveWithAmount, Amount: amount, Text: text}
	}
	if hasAnyPrefix(trimmed, p.accept) {
		return Intent{Kind: IntentApproveNoAmount, Text: text}
	}
	if hasAnyPrefix(trimmed, p.reject) {
		return Intent{Kind: IntentReject, Text: text}
	}
	return Intent{Kind: IntentFreeTextStatus, Text: text}
}

func (p *Parser) parseAmount(text string, target Target) string {
	if !containsAny(text, p.markers) {
		return ""
	}
	if target.Kind == TargetCharge {
		if target.ProfileID == "" || !strings.Contains(text, target.ProfileID) {
			return ""
		}
	}
	tok := amountPattern.FindString(text)
	if tok == "" {
		return ""
	}
	amount := normalizeAmount(tok)
	if !isPositive(amount) {
		return ""
	}
	return amount
}

// normalizeAmount rewrites a localized numeric token into a plain
// decimal string. Grouping commas are stripped and a lone decimal
// comma becomes a point, so "1,500" yields "1500" and "12,5" yields
// "12.5".
func normalizeAmount(tok string) string {
	s := strings.Trim(tok, ".,")
	if s == "" {
		return ""
	}
	if !strings.Contains(s, ",") {
		return s
	}
	if strings.Contains(s, ".") {
		// A point already marks the decimal, so every comma groups.
		return strings.ReplaceAll(s, ",", "")
	}
	parts := strings.Split(s, ",")
	grouping := true
	for _, part := range parts[1:] {
		if len(part) != 3 || !allDigits(part) {
			grouping = false
			break
		}
	}
	if grouping {
		return strings.Join(parts, "")
	}
	if len(parts) == 2 {
		return parts[0] + "." + parts[1]
	}
	return strings.Join(parts, "")
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// isPositive reports whether a normalized amount has any significant
// digit. Full numeric validation is left to the money parser.
func isPositive(amount string) bool {
	for _, r := range amount {
		if r >= '1' && r <= '9' {
			return true
		}
	}
	return false
}

func hasAnyPrefix(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.HasPrefix(text, w) {
			return true
		}
	}
	return false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(text, w) {
			return true
		}
	}
	return false
}
