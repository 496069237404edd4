package csvnorm

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// NewlinePlaceholder stands in for newlines found inside quoted fields while rows
// are split. NUL bytes never occur in text uploads, so literal cell text cannot collide.
const NewlinePlaceholder = "\x00NEWLINE\x00"

// ErrParse is matched by every error returned from Normalize.
var ErrParse = errors.New("csv parse error")

// ParseError describes why a CSV document could not be normalized.
type ParseError struct {
	Row    int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Row > 0 {
		msg = fmt.Sprintf("row %d: %s", e.Row, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "csv: " + msg
}

// Is reports ErrParse equivalence so callers can use errors.Is.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Row is one data record keyed by the header row. Headers keeps the original column order.
type Row struct {
	Headers []string
	Values  map[string]string
}

// Get returns the value stored under header, or an empty string.
func (r Row) Get(header string) string {
	if r.Values == nil {
		return ""
	}
	return r.Values[header]
}

// Normalize parses raw CSV text into row records. Newlines embedded in quoted
// fields survive as literal newlines in the returned values.
func Normalize(raw string) ([]Row, error) {
	raw = strings.TrimPrefix(raw, "\ufeff")
	if strings.TrimSpace(raw) == "" {
		return nil, &ParseError{Reason: "file is empty"}
	}

	protected, err := ProtectNewlines(raw)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(protected))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, &ParseError{Row: 1, Reason: "header row cannot be read", Err: err}
	}

	headers := make([]string, len(header))
	blankHeader := true
	for i, name := range header {
		headers[i] = RestoreString(name)
		if strings.TrimSpace(headers[i]) != "" {
			blankHeader = false
		}
	}
	if blankHeader {
		return nil, &ParseError{Row: 1, Reason: "header row is blank"}
	}

	rows := make([]Row, 0)
	for index := 2; ; index++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Row: index, Reason: "record cannot be read", Err: err}
		}
		if isBlankRecord(record) {
			continue
		}

		values := make(map[string]string, len(headers))
		for i, name := range headers {
			if _, seen := values[name]; seen {
				continue
			}
			value := ""
			if i < len(record) {
				value = record[i]
			}
			values[name] = value
		}
		rows = append(rows, Row{Headers: headers, Values: values})
	}

	if len(rows) == 0 {
		return nil, &ParseError{Reason: "file has no data rows"}
	}

	restored, _ := RestoreNewlines(rows).([]Row)
	return restored, nil
}

// ProtectNewlines replaces newlines inside quoted fields with NewlinePlaceholder.
// A quoted field that is never closed yields a ParseError.
func ProtectNewlines(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))

	inQuotes := false
	fieldStart := true
	row := 1
	quoteRow := 0

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if inQuotes {
			switch ch {
			case '"':
				if i+1 < len(raw) && raw[i+1] == '"' {
					b.WriteString(`""`)
					i++
					continue
				}
				inQuotes = false
				b.WriteByte(ch)
			case '\r':
				if i+1 < len(raw) && raw[i+1] == '\n' {
					i++
				}
				b.WriteString(NewlinePlaceholder)
			case '\n':
				b.WriteString(NewlinePlaceholder)
			default:
				b.WriteByte(ch)
			}
			continue
		}

		switch ch {
		case '"':
			if fieldStart {
				inQuotes = true
				quoteRow = row
			}
			fieldStart = false
		case ',':
			fieldStart = true
		case ' ', '\t':
			// A quote after leading blanks still opens the field.
		case '\n':
			fieldStart = true
			row++
		case '\r':
		default:
			fieldStart = false
		}
		b.WriteByte(ch)
	}

	if inQuotes {
		return "", &ParseError{Row: quoteRow, Reason: "unterminated quoted field"}
	}
	return b.String(), nil
}

// RestoreString turns placeholders back into newlines.
func RestoreString(value string) string {
	return strings.ReplaceAll(value, NewlinePlaceholder, "\n")
}

// RestoreNewlines walks value and restores placeholders in every string it contains.
// Maps and slices are copied; other values are returned unchanged.
func RestoreNewlines(value any) any {
	switch v := value.(type) {
	case string:
		return RestoreString(v)
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = RestoreString(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = RestoreNewlines(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, item := range v {
			out[key] = RestoreString(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = RestoreNewlines(item)
		}
		return out
	case Row:
		return Row{Headers: v.Headers, Values: RestoreNewlines(v.Values).(map[string]string)}
	case []Row:
		out := make([]Row, len(v))
		for i, item := range v {
			out[i] = RestoreNewlines(item).(Row)
		}
		return out
	default:
		return value
	}
}

func isBlankRecord(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
