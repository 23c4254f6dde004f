// Package collector provides the structured record set exchanged with the
// solving service: named tables of rows validated against a schema, with a
// streaming JSON round-trip.
package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"optimizer/internal/apperrors"
)

// Kind is the declared type of a field.
type Kind string

const (
	String Kind = "string"
	Int    Kind = "int"
	Float  Kind = "float"
	Bool   Kind = "bool"
)

// Field describes one column of a table.
type Field struct {
	Name string
	Kind Kind
}

// TableSchema is the ordered field list of one table.
type TableSchema []Field

// Schema maps table names to their field lists.
type Schema map[string]TableSchema

// Row is one record of a table.
type Row map[string]any

// Collector holds named tables of rows conforming to a schema.
type Collector struct {
	name   string
	schema Schema
	tables map[string][]Row
}

// New creates an empty collector for the given name and schema.
func New(name string, schema Schema) *Collector {
	return &Collector{
		name:   name,
		schema: schema,
		tables: make(map[string][]Row),
	}
}

// Name returns the collector's name.
func (c *Collector) Name() string {
	return c.name
}

// TableNames returns the populated table names in sorted order.
func (c *Collector) TableNames() []string {
	names := make([]string, 0, len(c.tables))
	for n := range c.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Table returns the rows of a table, or nil if it has not been populated.
func (c *Collector) Table(name string) []Row {
	return c.tables[name]
}

// SetTable replaces the rows of a table declared in the schema.
func (c *Collector) SetTable(name string, rows []Row) error {
	spec, ok := c.schema[name]
	if !ok {
		return apperrors.NotFound("table", name)
	}
	for i, row := range rows {
		if err := validateRow(spec, row); err != nil {
			return fmt.Errorf("table %s row %d: %w", name, i, err)
		}
	}
	c.tables[name] = rows
	return nil
}

// ToJSON serializes the collector into w one row at a time, so large tables
// never need a full in-memory JSON rendering.
func (c *Collector) ToJSON(w io.Writer) error {
	if _, err := io.WriteString(w, "{"); err != nil {
		return err
	}
	for ti, table := range c.TableNames() {
		if ti > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		key, err := json.Marshal(table)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s:[", key); err != nil {
			return err
		}
		for ri, row := range c.tables[table] {
			if ri > 0 {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("table %s row %d: %w", table, ri, err)
			}
			if _, err := w.Write(data); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "]"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}")
	return err
}

// FromJSON populates the collector from r, decoding row by row and
// validating each against the schema. Tables absent from the schema are an
// error; tables absent from the payload are simply left unpopulated.
func (c *Collector) FromJSON(r io.Reader) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to decode table name: %w", err)
		}
		table, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected table name, got %v", tok)
		}
		spec, ok := c.schema[table]
		if !ok {
			return apperrors.NotFound("table", table)
		}

		if err := expectDelim(dec, '['); err != nil {
			return fmt.Errorf("table %s: %w", table, err)
		}
		var rows []Row
		for dec.More() {
			var raw map[string]any
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("table %s row %d: %w", table, len(rows), err)
			}
			row, err := coerceRow(spec, raw)
			if err != nil {
				return fmt.Errorf("table %s row %d: %w", table, len(rows), err)
			}
			rows = append(rows, row)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return fmt.Errorf("table %s: %w", table, err)
		}
		c.tables[table] = rows
	}
	return expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want rune) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || rune(d) != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func validateRow(spec TableSchema, row Row) error {
	for _, f := range spec {
		v, ok := row[f.Name]
		if !ok {
			return fmt.Errorf("missing field %s", f.Name)
		}
		if !kindMatches(f.Kind, v) {
			return fmt.Errorf("field %s: %T does not satisfy kind %s", f.Name, v, f.Kind)
		}
	}
	return nil
}

func kindMatches(kind Kind, v any) bool {
	switch kind {
	case String:
		_, ok := v.(string)
		return ok
	case Int:
		switch v.(type) {
		case int, int32, int64:
			return true
		}
		return false
	case Float:
		switch v.(type) {
		case float32, float64, int, int32, int64:
			return true
		}
		return false
	case Bool:
		_, ok := v.(bool)
		return ok
	}
	return false
}

// coerceRow converts decoded JSON values to the schema's declared kinds.
func coerceRow(spec TableSchema, raw map[string]any) (Row, error) {
	row := make(Row, len(spec))
	for _, f := range spec {
		v, ok := raw[f.Name]
		if !ok {
			return nil, fmt.Errorf("missing field %s", f.Name)
		}
		switch f.Kind {
		case String:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("field %s: expected string, got %T", f.Name, v)
			}
			row[f.Name] = s
		case Int:
			num, ok := v.(json.Number)
			if !ok {
				return nil, fmt.Errorf("field %s: expected number, got %T", f.Name, v)
			}
			n, err := num.Int64()
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			row[f.Name] = n
		case Float:
			num, ok := v.(json.Number)
			if !ok {
				return nil, fmt.Errorf("field %s: expected number, got %T", f.Name, v)
			}
			n, err := num.Float64()
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			row[f.Name] = n
		case Bool:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("field %s: expected bool, got %T", f.Name, v)
			}
			row[f.Name] = b
		default:
			return nil, fmt.Errorf("field %s: unknown kind %s", f.Name, f.Kind)
		}
	}
	return row, nil
}
