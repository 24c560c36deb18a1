// Package http provides HTTP server and handler implementations.
//
// This file implements request body decoding and the request payloads
// accepted by the API.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"saldo/internal/core"
	"saldo/internal/goals"
	"saldo/internal/ledger"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 10 << 20
)

// decodeJSON reads a single JSON object from the request body into v.
// Unknown fields are rejected so typos in field names surface as 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, core.ErrInvalidFormat) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// readBody reads at most limit bytes of the raw body.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return data, nil
}

// transactionRequest is the body of POST and PATCH on incomes and expenses.
type transactionRequest struct {
	Amount      *core.Money `json:"valor"`
	Date        *core.Date  `json:"data"`
	Description *string     `json:"descricao"`
	Category    *string     `json:"categoria"`
}

func (req transactionRequest) input() ledger.TransactionInput {
	in := ledger.TransactionInput{}
	if req.Amount != nil {
		in.Amount = *req.Amount
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	if req.Description != nil {
		in.Description = sanitizeInput(*req.Description)
	}
	if req.Category != nil {
		in.CategoryID = strings.TrimSpace(*req.Category)
	}
	return in
}

func (req transactionRequest) patch() ledger.TransactionPatch {
	p := ledger.TransactionPatch{Amount: req.Amount, Date: req.Date}
	if req.Description != nil {
		d := sanitizeInput(*req.Description)
		p.Description = &d
	}
	if req.Category != nil {
		c := strings.TrimSpace(*req.Category)
		p.CategoryID = &c
	}
	return p
}

type categoryRequest struct {
	Name  *string `json:"nome"`
	Color *string `json:"cor"`
}

func (req categoryRequest) patch() ledger.CategoryPatch {
	p := ledger.CategoryPatch{}
	if req.Name != nil {
		n := sanitizeInput(*req.Name)
		p.Name = &n
	}
	if req.Color != nil {
		c := strings.TrimSpace(*req.Color)
		p.Color = &c
	}
	return p
}

// goalRequest is the body of POST and PATCH on goals. A null end date cannot
// be told apart from a missing one, so clearing it takes removerDataFinal.
type goalRequest struct {
	Title        *string     `json:"titulo"`
	Target       *core.Money `json:"valorAlvo"`
	Current      *core.Money `json:"valorAtual"`
	StartDate    *core.Date  `json:"dataInicio"`
	EndDate      *core.Date  `json:"dataFinal"`
	ClearEndDate bool        `json:"removerDataFinal"`
	Color        *string     `json:"cor"`
	Active       *bool       `json:"ativa"`
}

func (req goalRequest) input() goals.GoalInput {
	in := goals.GoalInput{EndDate: req.EndDate, Active: req.Active}
	if req.Title != nil {
		in.Title = sanitizeInput(*req.Title)
	}
	if req.Target != nil {
		in.Target = *req.Target
	}
	if req.Current != nil {
		in.Current = *req.Current
	}
	if req.StartDate != nil {
		in.StartDate = *req.StartDate
	}
	if req.Color != nil {
		in.Color = strings.TrimSpace(*req.Color)
	}
	return in
}

func (req goalRequest) patch() goals.GoalPatch {
	p := goals.GoalPatch{
		Target:       req.Target,
		Current:      req.Current,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		ClearEndDate: req.ClearEndDate,
		Active:       req.Active,
	}
	if req.Title != nil {
		t := sanitizeInput(*req.Title)
		p.Title = &t
	}
	if req.Color != nil {
		c := strings.TrimSpace(*req.Color)
		p.Color = &c
	}
	return p
}

type depositRequest struct {
	Amount core.Money `json:"valor"`
}

// ParsePeriodParam reads ?period=, defaulting to all.
func ParsePeriodParam(query url.Values) (core.Period, error) {
	return core.ParsePeriod(query.Get("period"))
}

// ParseYearParam reads ?year=, defaulting to the current year.
func ParseYearParam(query url.Values, now time.Time) (int, error) {
	v := strings.TrimSpace(query.Get("year"))
	if v == "" {
		return now.Year(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1 || y > 9999 {
		return 0, fmt.Errorf("%w: invalid year %q", core.ErrInvalidInput, v)
	}
	return y, nil
}
