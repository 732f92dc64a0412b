package models

import (
	"strings"
	"time"

	dErrors "rehla/pkg/domainerrors"
)

const (
	// PlantedAtLayout is the date format of Form.PlantedAt.
	PlantedAtLayout = "2006-01-02"
	MaxPhotos       = 10
	maxSerialLength = 128
	maxTextLength   = 2000
)

// Normalize trims text fields in place.
func (f *Form) Normalize() {
	f.SerialNumber = strings.TrimSpace(f.SerialNumber)
	f.Species = strings.TrimSpace(f.Species)
	f.PlantedAt = strings.TrimSpace(f.PlantedAt)
	f.LocationName = strings.TrimSpace(f.LocationName)
	f.PlanterName = strings.TrimSpace(f.PlanterName)
	f.Notes = strings.TrimSpace(f.Notes)
}

// Validate checks a normalized form.
func (f *Form) Validate() error {
	if f.SerialNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "serial_number is required")
	}
	if len(f.SerialNumber) > maxSerialLength {
		return dErrors.New(dErrors.CodeValidation, "serial_number is too long")
	}
	if (f.Latitude == nil) != (f.Longitude == nil) {
		return dErrors.New(dErrors.CodeValidation, "latitude and longitude must be given together")
	}
	if f.Latitude != nil && (*f.Latitude < -90 || *f.Latitude > 90) {
		return dErrors.New(dErrors.CodeValidation, "latitude must be between -90 and 90")
	}
	if f.Longitude != nil && (*f.Longitude < -180 || *f.Longitude > 180) {
		return dErrors.New(dErrors.CodeValidation, "longitude must be between -180 and 180")
	}
	if f.PlantedAt != "" {
		if _, err := time.Parse(PlantedAtLayout, f.PlantedAt); err != nil {
			return dErrors.New(dErrors.CodeValidation, "planted_at must be a date (YYYY-MM-DD)")
		}
	}
	if len(f.Notes) > maxTextLength {
		return dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	if len(f.Photos) > MaxPhotos {
		return dErrors.New(dErrors.CodeValidation, "too many photos")
	}
	for _, p := range f.Photos {
		if len(p.Data) == 0 {
			return dErrors.New(dErrors.CodeValidation, "photo "+p.Name+" is empty")
		}
	}
	return nil
}
