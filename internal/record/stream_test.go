package record

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceLines is a LineSource over fixed lines that can fail at the end.
type sliceLines struct {
	lines []string
	i     int
	err   error
}

func (s *sliceLines) Next() bool {
	if s.i >= len(s.lines) {
		return false
	}
	s.i++
	return true
}
func (s *sliceLines) Bytes() []byte { return []byte(s.lines[s.i-1]) }
func (s *sliceLines) Number() int   { return s.i }
func (s *sliceLines) Err() error    { return s.err }

func TestStream_Outcomes(t *testing.T) {
	t.Parallel()

	src := &sliceLines{lines: []string{
		`{"timestamp":1,"severity_text":"INFO","body":"a","tenant_id":1}`,
		`not json`,
		``,
		`{"timestamp":2,"severity_text":"INFO","body":"b","tenant_id":2}`,
	}}
	s := NewStream(src, NewParser(SeverityTruncate))

	var got []Outcome
	for s.Next() {
		got = append(got, s.Outcome())
	}
	require.NoError(t, s.Err())
	require.Len(t, got, 4)

	assert.True(t, got[0].OK())
	assert.Equal(t, int64(1), got[0].Record.Timestamp)
	assert.Empty(t, got[0].Raw, "raw is only kept for failures")

	assert.False(t, got[1].OK())
	assert.Equal(t, 2, got[1].Line)
	assert.Equal(t, "not json", got[1].Raw)
	assert.ErrorIs(t, got[1].Err, ErrMalformedJSON)

	assert.ErrorIs(t, got[2].Err, ErrEmptyLine)
	assert.Equal(t, 3, got[2].Line)

	assert.True(t, got[3].OK())
	assert.Equal(t, 4, got[3].Line)

	assert.False(t, s.Next(), "stream cannot be restarted")
}

func TestStream_ReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := NewStream(&sliceLines{err: boom}, NewParser(SeverityTruncate))
	assert.False(t, s.Next())
	assert.ErrorIs(t, s.Err(), boom)
}
