package record

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/valyala/fastjson"
)

// Sentinel causes carried by ParseError. Use errors.Is to classify a failure.
var (
	ErrEmptyLine       = errors.New("empty line")
	ErrInvalidUTF8     = errors.New("invalid UTF-8")
	ErrMalformedJSON   = errors.New("malformed JSON")
	ErrNotObject       = errors.New("not a JSON object")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidField    = errors.New("invalid field value")
	ErrSeverityTooLong = errors.New("severity_text exceeds column width")
)

// ParseError describes why a single input line could not be turned into a
// LogRecord. Line is 1-based. Field is empty when the failure is not tied to
// a specific field (empty line, malformed JSON).
type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d: field %q: %v", e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Reason returns a short, stable classification of the failure suitable for
// grouping (reject logs, metrics labels).
func (e *ParseError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrEmptyLine):
		return "empty_line"
	case errors.Is(e.Err, ErrInvalidUTF8):
		return "invalid_utf8"
	case errors.Is(e.Err, ErrNotObject):
		return "not_object"
	case errors.Is(e.Err, ErrMissingField):
		return "missing_field"
	case errors.Is(e.Err, ErrSeverityTooLong):
		return "severity_too_long"
	case errors.Is(e.Err, ErrInvalidField):
		return "invalid_field"
	default:
		return "malformed_json"
	}
}

// SeverityPolicy decides what happens to a severity_text longer than
// MaxSeverityLen characters.
type SeverityPolicy string

const (
	// SeverityTruncate keeps the first MaxSeverityLen runes.
	SeverityTruncate SeverityPolicy = "truncate"
	// SeverityReject turns the line into a parse error.
	SeverityReject SeverityPolicy = "reject"
)

// ParseSeverityPolicy maps a config value onto a SeverityPolicy. An empty
// value selects SeverityTruncate.
func ParseSeverityPolicy(s string) (SeverityPolicy, error) {
	switch SeverityPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SeverityTruncate:
		return SeverityTruncate, nil
	case SeverityReject:
		return SeverityReject, nil
	default:
		return "", fmt.Errorf("unknown severity overflow policy %q (want truncate or reject)", s)
	}
}

// Parser decodes NDJSON lines into LogRecords.
//
// Parsing is deterministic: the same line always produces the same outcome.
// A Parser reuses an internal scratch buffer and must not be used from more
// than one goroutine at a time; every returned value is copied out of it.
type Parser struct {
	policy SeverityPolicy
	p      fastjson.Parser
}

// NewParser returns a Parser applying the given severity overflow policy.
func NewParser(policy SeverityPolicy) *Parser {
	if policy == "" {
		policy = SeverityTruncate
	}
	return &Parser{policy: policy}
}

// Parse decodes one line. lineNo is the 1-based position of the line in the
// input and is only used to annotate errors. Any returned error is a
// *ParseError.
func (p *Parser) Parse(line []byte, lineNo int) (LogRecord, error) {
	if len(bytes.TrimSpace(line)) == 0 {
		return LogRecord{}, &ParseError{Line: lineNo, Err: ErrEmptyLine}
	}
	if !utf8.Valid(line) {
		return LogRecord{}, &ParseError{Line: lineNo, Err: ErrInvalidUTF8}
	}

	v, err := p.p.ParseBytes(line)
	if err != nil {
		return LogRecord{}, &ParseError{Line: lineNo, Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)}
	}
	obj, err := v.Object()
	if err != nil {
		return LogRecord{}, &ParseError{Line: lineNo, Err: fmt.Errorf("%w (got %s)", ErrNotObject, v.Type())}
	}

	var rec LogRecord
	if rec.Timestamp, err = int64Field(obj, "timestamp"); err != nil {
		return LogRecord{}, &ParseError{Line: lineNo, Field: "timestamp", Err: err}
	}
	if rec.SeverityText, err = stringField(obj, "severity_text"); err != nil {
		return LogRecord{}, &ParseError{Line: lineNo, Field: "severity_text", Err: err}
	}
	if rec.Body, err = stringField(obj, "body"); err != nil {
		return LogRecord{}, &ParseError{Line: lineNo, Field: "body", Err: err}
	}
	tenant, err := int64Field(obj, "tenant_id")
	if err != nil {
		return LogRecord{}, &ParseError{Line: lineNo, Field: "tenant_id", Err: err}
	}
	if tenant < math.MinInt32 || tenant > math.MaxInt32 {
		return LogRecord{}, &ParseError{
			Line:  lineNo,
			Field: "tenant_id",
			Err:   fmt.Errorf("%w: %d out of 32-bit range", ErrInvalidField, tenant),
		}
	}
	rec.TenantID = int32(tenant)

	if utf8.RuneCountInString(rec.SeverityText) > MaxSeverityLen {
		if p.policy == SeverityReject {
			return LogRecord{}, &ParseError{
				Line:  lineNo,
				Field: "severity_text",
				Err:   fmt.Errorf("%w: %d > %d characters", ErrSeverityTooLong, utf8.RuneCountInString(rec.SeverityText), MaxSeverityLen),
			}
		}
		rec.SeverityText = truncateRunes(rec.SeverityText, MaxSeverityLen)
	}

	return rec, nil
}

func int64Field(obj *fastjson.Object, name string) (int64, error) {
	v := obj.Get(name)
	if v == nil {
		return 0, ErrMissingField
	}
	if v.Type() != fastjson.TypeNumber {
		return 0, fmt.Errorf("%w: want integer, got %s", ErrInvalidField, v.Type())
	}
	n, err := v.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	return n, nil
}

func stringField(obj *fastjson.Object, name string) (string, error) {
	v := obj.Get(name)
	if v == nil {
		return "", ErrMissingField
	}
	b, err := v.StringBytes()
	if err != nil {
		return "", fmt.Errorf("%w: want string, got %s", ErrInvalidField, v.Type())
	}
	// string() copies out of the parser's scratch buffer.
	return string(b), nil
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
