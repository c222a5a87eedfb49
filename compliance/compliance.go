// Package compliance checks produced documents with pdfcpu before they
// leave the service.
package compliance

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Report summarises a successful validation.
type Report struct {
	Pages   int
	Version string
	Mode    string
}

// Validator runs pdfcpu's structural validation. Strict selects
// pdfcpu's strict mode; the default is relaxed, which tolerates the
// common deviations found in publisher PDFs.
type Validator struct {
	Strict bool
}

// NewValidator returns a relaxed validator.
func NewValidator() *Validator { return &Validator{} }

func (v *Validator) config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if v.Strict {
		conf.ValidationMode = model.ValidationStrict
	}
	return conf
}

func (v *Validator) mode() string {
	if v.Strict {
		return "strict"
	}
	return "relaxed"
}

// Validate reports whether pdf passes validation.
func (v *Validator) Validate(ctx context.Context, pdf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := api.Validate(bytes.NewReader(pdf), v.config()); err != nil {
		return fmt.Errorf("pdfcpu %s validation: %w", v.mode(), err)
	}
	return nil
}

// Inspect validates pdf and reports its page count and header version.
func (v *Validator) Inspect(ctx context.Context, pdf []byte) (*Report, error) {
	if err := v.Validate(ctx, pdf); err != nil {
		return nil, err
	}
	pages, err := api.PageCount(bytes.NewReader(pdf), v.config())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu page count: %w", err)
	}
	return &Report{Pages: pages, Version: headerVersion(pdf), Mode: v.mode()}, nil
}

func headerVersion(pdf []byte) string {
	const magic = "%PDF-"
	if !bytes.HasPrefix(pdf, []byte(magic)) {
		return ""
	}
	rest := pdf[len(magic):]
	end := bytes.IndexAny(rest, "\r\n \t%")
	if end < 0 {
		end = len(rest)
	}
	return string(rest[:end])
}
