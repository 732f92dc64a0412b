package service

import (
	"context"

	"rehla/internal/tree/models"
)

// SerialExtractor reduces a scanned payload to a serial.
type SerialExtractor interface {
	Extract(ctx context.Context, payload string) string
}

// Binder fills the data-entry form from a scan.
type Binder struct {
	extractor SerialExtractor
}

func NewBinder(extractor SerialExtractor) *Binder {
	return &Binder{extractor: extractor}
}

// Prefill binds the serial resolved from payload to the form. The volunteer
// fills in the rest.
func (b *Binder) Prefill(ctx context.Context, payload string) models.Form {
	return models.Form{SerialNumber: b.extractor.Extract(ctx, payload)}
}

// Bind sets the serial on an existing form, keeping what was already entered.
func (b *Binder) Bind(ctx context.Context, form *models.Form, payload string) {
	form.SerialNumber = b.extractor.Extract(ctx, payload)
}
