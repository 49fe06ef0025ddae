package datasource

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"golang.org/x/text/transform"
)

const readBufferSize = 256 << 10

var utf8BOM = []byte("\ufeff")

// Lines reads newline-delimited input one line at a time.
//
//   - Line numbers are 1-based and count every line consumed, blank or not.
//   - The trailing "\n" or "\r\n" is stripped; lines may be of any length.
//   - A leading UTF-8 byte order mark is removed. All other bytes, including
//     ill-formed UTF-8, are passed through unchanged.
//   - When maxRows > 0, at most maxRows lines are consumed; the rest of the
//     input is never read.
//
// Lines is not safe for concurrent use.
type Lines struct {
	r    *bufio.Reader
	max  int
	n    int
	cur  []byte
	buf  []byte
	err  error
	done bool
}

// NewLines returns a line cursor over r. maxRows <= 0 means no cap.
func NewLines(r io.Reader, maxRows int) *Lines {
	dec := transform.NewReader(r, &bomStripper{})
	return &Lines{
		r:   bufio.NewReaderSize(dec, readBufferSize),
		max: maxRows,
	}
}

// Next advances to the next line. It returns false at end of input, when the
// row cap is reached, or on a read error (see Err).
func (l *Lines) Next() bool {
	if l.done || l.err != nil {
		return false
	}
	if l.max > 0 && l.n >= l.max {
		l.done = true
		return false
	}

	l.buf = l.buf[:0]
	for {
		chunk, err := l.r.ReadSlice('\n')
		l.buf = append(l.buf, chunk...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			l.done = true
			if len(l.buf) == 0 {
				return false
			}
			break
		}
		l.err = err
		return false
	}

	l.n++
	l.cur = trimEOL(l.buf)
	return true
}

// Bytes returns the current line without its terminator. The slice is only
// valid until the next call to Next.
func (l *Lines) Bytes() []byte { return l.cur }

// Number returns the 1-based number of the current line.
func (l *Lines) Number() int { return l.n }

// Err returns the first non-EOF read error.
func (l *Lines) Err() error { return l.err }

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte{'\n'})
	return bytes.TrimSuffix(b, []byte{'\r'})
}

// bomStripper drops a leading UTF-8 BOM and copies everything else verbatim.
type bomStripper struct {
	checked bool
}

func (s *bomStripper) Reset() { s.checked = false }

func (s *bomStripper) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	if !s.checked {
		if len(src) < len(utf8BOM) && !atEOF && bytes.HasPrefix(utf8BOM, src) {
			return 0, 0, transform.ErrShortSrc
		}
		s.checked = true
		if bytes.HasPrefix(src, utf8BOM) {
			nSrc = len(utf8BOM)
		}
	}
	n := copy(dst, src[nSrc:])
	nDst, nSrc = n, nSrc+n
	if nSrc < len(src) {
		err = transform.ErrShortDst
	}
	return nDst, nSrc, err
}
