package cacheapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Data is a decoded JSON object. Numbers are kept as json.Number so that
// integers survive unchanged.
type Data map[string]any

// Lookup returns a field and whether it is present. A present JSON null
// yields (nil, true).
func (d Data) Lookup(name string) (any, bool) {
	v, ok := d[name]
	return v, ok
}

// Has reports whether the field is present.
func (d Data) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// String returns a string field.
func (d Data) String(name string) (string, bool) {
	s, ok := d[name].(string)
	return s, ok
}

// Int returns an integer field.
func (d Data) Int(name string) (int64, bool) {
	n, ok := d[name].(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	return i, err == nil
}

// Bool returns a boolean field.
func (d Data) Bool(name string) (bool, bool) {
	b, ok := d[name].(bool)
	return b, ok
}

// Object returns a nested object field.
func (d Data) Object(name string) (Data, bool) {
	m, ok := d[name].(map[string]any)
	return Data(m), ok
}

// parseData decodes a response body that must be a JSON object.
func parseData(raw string) (Data, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var data Data
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("expected a JSON object, got null")
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON object")
	}
	return data, nil
}

// CommandResponse is the result of a command.
type CommandResponse struct {
	// Key is the key exactly as given in the CommandConfig.
	Key string

	// Raw is the response body verbatim.
	Raw string

	// Data is the decoded response body.
	Data Data

	// HasValue is true iff Data contains a "value" field, even if it is null.
	HasValue bool

	// StatusCode is the HTTP status of the response.
	StatusCode int
}

// Value returns the "value" field.
func (r *CommandResponse) Value() (any, bool) {
	return r.Data.Lookup("value")
}

// PrevValue returns the "prev_value" field the server sends back for
// set and delete when the previous value was requested.
func (r *CommandResponse) PrevValue() (any, bool) {
	return r.Data.Lookup("prev_value")
}
