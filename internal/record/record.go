// Package record defines the log record model ingested by the loader and the
// line parser that produces it.
//
// A record is decoded from one line of newline-delimited JSON:
//
//	{"timestamp":1,"severity_text":"INFO","body":"a","tenant_id":7}
//
// Field names must match exactly (case-sensitive); unknown fields are ignored.
package record

// MaxSeverityLen is the width of the destination severity_text column, in
// characters.
const MaxSeverityLen = 50

// LogRecord is one ingested log line.
type LogRecord struct {
	// Timestamp is epoch time; the unit is chosen by the producer.
	Timestamp int64 `json:"timestamp"`

	// SeverityText is a short free-form level label (INFO, WARN, ...).
	SeverityText string `json:"severity_text"`

	// Body is the log payload.
	Body string `json:"body"`

	// TenantID identifies the logical tenant; it leads the table's primary key.
	TenantID int32 `json:"tenant_id"`
}

// Columns returns the destination column names in insert order. The order
// matches Values.
func Columns() []string {
	return []string{"timestamp", "severity_text", "body", "tenant_id"}
}

// Values returns the record's fields positionally, aligned with Columns.
func (r LogRecord) Values() []any {
	return []any{r.Timestamp, r.SeverityText, r.Body, r.TenantID}
}
