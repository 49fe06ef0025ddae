package record

// LineSource is a single-pass cursor over numbered input lines.
// datasource.Lines satisfies it.
type LineSource interface {
	Next() bool
	Bytes() []byte
	Number() int
	Err() error
}

// Outcome is the result of parsing one input line: either Record is valid
// (Err == nil) or Err is a *ParseError and Raw holds a copy of the line.
type Outcome struct {
	Line   int
	Record LogRecord
	Err    error
	Raw    string
}

// OK reports whether the line produced a valid record.
func (o Outcome) OK() bool { return o.Err == nil }

// Stream lazily parses a LineSource, one outcome per line. It cannot be
// restarted. Usage mirrors bufio.Scanner:
//
//	for s.Next() {
//	    o := s.Outcome()
//	    ...
//	}
//	if err := s.Err(); err != nil { ... }
//
// Parse failures are reported through Outcome.Err and never stop the stream.
// Err only reports failures of the underlying line source.
type Stream struct {
	lines  LineSource
	parser *Parser
	cur    Outcome
}

// NewStream returns a Stream over lines using parser.
func NewStream(lines LineSource, parser *Parser) *Stream {
	return &Stream{lines: lines, parser: parser}
}

// Next advances to the next line and parses it.
func (s *Stream) Next() bool {
	if !s.lines.Next() {
		return false
	}
	n := s.lines.Number()
	line := s.lines.Bytes()
	rec, err := s.parser.Parse(line, n)
	s.cur = Outcome{Line: n, Record: rec, Err: err}
	if err != nil {
		s.cur.Raw = string(line)
	}
	return true
}

// Outcome returns the outcome of the most recent Next.
func (s *Stream) Outcome() Outcome { return s.cur }

// Err returns the first non-EOF error of the line source.
func (s *Stream) Err() error { return s.lines.Err() }
