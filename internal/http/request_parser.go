// Package http serves the ledger as a JSON API with CSV downloads.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies may be JSON or form-encoded; query strings carry list filters.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tripledger/internal/core"
	"tripledger/internal/report"
)

// maxBodyBytes bounds request bodies read by RequestBodyParser.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("malformed request body")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = fmt.Errorf("%w: %w", errBadRequest, p.err)
		return p.err
	}

	body := bytes.TrimSpace(p.body)
	if len(body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("%w: %w", errBadRequest, err)
			return p.err
		}
		return nil
	}

	// Fall back to form parsing
	form, err := url.ParseQuery(string(body))
	if err != nil {
		p.err = fmt.Errorf("%w: %w", errBadRequest, err)
		return p.err
	}
	p.formData = form
	return nil
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

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

// ParseExpenseInput reads a new expense from the request body. Malformed
// amounts are reported as validation errors; the rest is left to
// ExpenseInput.Validate.
func ParseExpenseInput(r *http.Request) (core.ExpenseInput, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.ExpenseInput{}, err
	}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.ExpenseInput{}, fmt.Errorf("%w: %w", core.ErrValidation, err)
	}

	return core.ExpenseInput{
		Date:     p.Get("date"),
		Merchant: p.Get("merchant"),
		Category: p.Get("category"),
		Amount:   amount,
		Currency: strings.ToUpper(p.Get("currency")),
		Trip:     p.Get("trip"),
		TripID:   p.Get("tripId"),
		Location: p.Get("location"),
		Notes:    p.Get("notes"),
	}, nil
}

// ParseTripInput reads a new trip from the request body. A missing status
// means the trip is upcoming.
func ParseTripInput(r *http.Request) (core.TripInput, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.TripInput{}, err
	}

	budget, err := core.ParseAmount(p.Get("budget"))
	if err != nil {
		return core.TripInput{}, fmt.Errorf("%w: budget: %w", core.ErrValidation, err)
	}

	status := core.TripStatus(p.Get("status"))
	if status == "" {
		status = core.TripUpcoming
	}

	return core.TripInput{
		Name:      p.Get("name"),
		StartDate: p.Get("startDate"),
		EndDate:   p.Get("endDate"),
		Location:  p.Get("location"),
		Status:    status,
		Budget:    budget,
	}, nil
}

// ParseExpenseCriteria reads list filters from the query string:
// search, status, category, trip, start and end (YYYY-MM-DD or MM/DD/YYYY).
// undated=exclude drops records with unparseable dates from ranged queries.
func ParseExpenseCriteria(query url.Values) (report.ExpenseCriteria, error) {
	c := report.ExpenseCriteria{
		Search:   sanitizeInput(query.Get("search")),
		Status:   sanitizeInput(query.Get("status")),
		Category: sanitizeInput(query.Get("category")),
		Trip:     sanitizeInput(query.Get("trip")),
	}

	for _, bound := range []struct {
		name string
		dst  *core.Date
	}{{"start", &c.Start}, {"end", &c.End}} {
		v := strings.TrimSpace(query.Get(bound.name))
		if v == "" {
			continue
		}
		d, ok := core.ParseDate(v)
		if !ok {
			return report.ExpenseCriteria{}, fmt.Errorf("%w: %s: %w", core.ErrValidation, bound.name, core.ErrInvalidDate)
		}
		*bound.dst = d
	}

	switch strings.ToLower(strings.TrimSpace(query.Get("undated"))) {
	case "", "include":
	case "exclude":
		c.Unparseable = report.ExcludeUnparseable
	default:
		return report.ExpenseCriteria{}, fmt.Errorf("%w: undated must be include or exclude", core.ErrValidation)
	}
	return c, nil
}

// ParseTripCriteria reads search and status from the query string.
func ParseTripCriteria(query url.Values) report.TripCriteria {
	return report.TripCriteria{
		Search: sanitizeInput(query.Get("search")),
		Status: sanitizeInput(query.Get("status")),
	}
}
