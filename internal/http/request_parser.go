// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating request bodies.
// Browser clients send ids and amounts both as JSON numbers and as strings,
// so every accessor accepts either.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"budgetsim/internal/core"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 64 << 10

// requestError is a malformed request, as opposed to a rule failure.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// RequestBodyParser reads a JSON object once and exposes typed fields.
type RequestBodyParser struct {
	body   []byte
	fields map[string]any
}

// ParseRequestBody reads and decodes the request body. An empty body is an
// empty object; anything that is not a JSON object is a 400.
func ParseRequestBody(r *http.Request) (*RequestBodyParser, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, badRequest("Could not read request body")
	}
	if len(body) > maxBodyBytes {
		return nil, &requestError{status: http.StatusRequestEntityTooLarge, msg: "Request body too large"}
	}

	p := &RequestBodyParser{body: body, fields: map[string]any{}}
	if len(bytes.TrimSpace(body)) == 0 {
		return p, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&p.fields); err != nil {
		return nil, badRequest("Invalid JSON body")
	}
	return p, nil
}

// Has reports whether key was sent with a non-null value.
func (p *RequestBodyParser) Has(key string) bool {
	v, ok := p.fields[key]
	return ok && v != nil
}

// String returns a sanitized string value, or "" when absent.
func (p *RequestBodyParser) String(key string) string {
	return sanitizeInput(stringValue(p.fields[key]))
}

// ID returns a positive integer id.
func (p *RequestBodyParser) ID(key string) (int64, error) {
	s := p.String(key)
	if s == "" {
		return 0, core.Invalid(core.ErrInvalidInput, "%s is required", key)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid(core.ErrInvalidInput, "%s must be a positive integer", key)
	}
	return id, nil
}

// Int returns an optional integer; absent means 0.
func (p *RequestBodyParser) Int(key string) (int, error) {
	s := p.String(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, core.Invalid(core.ErrInvalidInput, "%s must be an integer", key)
	}
	return n, nil
}

// Amount returns a required money value. Range checks belong to the ledger.
func (p *RequestBodyParser) Amount(key string) (decimal.Decimal, error) {
	return core.ParseAmount(p.String(key))
}

// OptionalAmount returns fallback when key is absent.
func (p *RequestBodyParser) OptionalAmount(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if !p.Has(key) {
		return fallback, nil
	}
	return core.ParseAmount(p.String(key))
}

// Bool accepts JSON booleans, 0/1 and the strings "true"/"false".
func (p *RequestBodyParser) Bool(key string) (bool, error) {
	if !p.Has(key) {
		return false, core.Invalid(core.ErrInvalidInput, "%s is required", key)
	}
	b, err := strconv.ParseBool(strings.ToLower(p.String(key)))
	if err != nil {
		return false, core.Invalid(core.ErrInvalidInput, "%s must be true or false", key)
	}
	return b, nil
}

// Decode unmarshals the raw body into v.
func (p *RequestBodyParser) Decode(v any) error {
	if len(bytes.TrimSpace(p.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(p.body, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return core.Invalid(core.ErrInvalidInput, "Invalid value for %s", typeErr.Field)
		}
		return core.Invalid(core.ErrInvalidInput, "Invalid request body")
	}
	return nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// PathID parses a positive integer path value.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("Invalid %s", name)
	}
	return id, nil
}
