package normalize

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/raphaelgruber/portalsync/internal/errs"
	"github.com/raphaelgruber/portalsync/internal/models"
)

// Normalize dispatches on kind and returns *models.Location, *models.Job or *models.Media.
func Normalize(kind models.Kind, raw models.RawRecord) (any, error) {
	switch kind {
	case models.KindLocation:
		return Location(raw)
	case models.KindJob:
		return Job(raw)
	case models.KindMedia:
		return Media(raw)
	}
	return nil, fmt.Errorf("normalize: unknown kind %q", kind)
}

// fieldsOf gives a per-kind view over a raw record.
type fieldsOf struct {
	kind   models.Kind
	fields map[string]any
}

func (f fieldsOf) aliases(field string) []string {
	if a, ok := Aliases[f.kind][field]; ok {
		return a
	}
	return commonAliases[field]
}

func (f fieldsOf) str(field string) (string, bool) {
	return resolve(f.fields, f.aliases(field), asString)
}

func (f fieldsOf) strOr(field, def string) string {
	if s, ok := f.str(field); ok {
		return s
	}
	return def
}

func (f fieldsOf) strPtr(field string) *string {
	if s, ok := f.str(field); ok {
		return &s
	}
	return nil
}

func (f fieldsOf) nonNegative(field string) *float64 {
	if v, ok := resolve(f.fields, f.aliases(field), asNonNegative); ok {
		return &v
	}
	return nil
}

func (f fieldsOf) timePtr(field string) *time.Time {
	if t, ok := resolve(f.fields, f.aliases(field), asTime); ok {
		return &t
	}
	return nil
}

// identifier resolves the record key. A record without one cannot be reconciled.
func identifier(kind models.Kind, raw models.RawRecord) (string, error) {
	if id := strings.TrimSpace(raw.ID); id != "" {
		return id, nil
	}
	if id, ok := resolve(raw.Fields, commonAliases[FieldID], asString); ok {
		return id, nil
	}
	return "", &errs.ValidationError{Kind: string(kind), Field: FieldID, Reason: "missing identifier"}
}

// Location normalizes a location document.
func Location(raw models.RawRecord) (*models.Location, error) {
	id, err := identifier(models.KindLocation, raw)
	if err != nil {
		return nil, err
	}
	f := fieldsOf{kind: models.KindLocation, fields: raw.Fields}

	return &models.Location{
		ID:             id,
		Name:           f.strOr(FieldName, DefaultLocationName),
		Address:        f.strOr(FieldAddress, ""),
		OrganizationID: f.strOr(FieldOrganizationID, ""),
		Coordinates:    coordinates(f),
		Status:         locationStatus(f),
		CreatedAt:      f.timePtr(FieldCreatedAt),
		UpdatedAt:      f.timePtr(FieldUpdatedAt),
	}, nil
}

func locationStatus(f fieldsOf) models.LocationStatus {
	if s, ok := f.str(FieldStatus); ok {
		if st, ok := locationStatusRenames[enumKey(s)]; ok {
			return st
		}
	}
	if active, ok := resolve(f.fields, f.aliases(FieldActive), asBool); ok {
		if active {
			return models.LocationActive
		}
		return models.LocationInactive
	}
	return DefaultLocStatus
}

// coordinates accepts a nested point ({lat,lng}, {latitude,longitude}, or a
// GeoJSON-style [lng, lat] pair) or top-level lat/lng fields.
func coordinates(f fieldsOf) *models.Coordinates {
	if c, ok := resolve(f.fields, f.aliases(FieldCoordinates), asCoordinates); ok {
		return &c
	}
	lat, okLat := resolve(f.fields, f.aliases(FieldLatitude), asFloat)
	lng, okLng := resolve(f.fields, f.aliases(FieldLongitude), asFloat)
	if okLat && okLng && validPoint(lat, lng) {
		return &models.Coordinates{Lat: lat, Lng: lng}
	}
	return nil
}

func asCoordinates(v any) (models.Coordinates, bool) {
	switch t := v.(type) {
	case map[string]any:
		if inner, ok := t["coordinates"]; ok {
			return asCoordinates(inner)
		}
		lat, okLat := resolve(t, []string{"lat", "latitude", "_latitude"}, asFloat)
		lng, okLng := resolve(t, []string{"lng", "lon", "longitude", "_longitude"}, asFloat)
		if okLat && okLng && validPoint(lat, lng) {
			return models.Coordinates{Lat: lat, Lng: lng}, true
		}
	case []any:
		if len(t) == 2 {
			lng, okLng := asFloat(t[0])
			lat, okLat := asFloat(t[1])
			if okLat && okLng && validPoint(lat, lng) {
				return models.Coordinates{Lat: lat, Lng: lng}, true
			}
		}
	}
	return models.Coordinates{}, false
}

func validPoint(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Job normalizes a job document. LocationID may be empty; the relational store
// rejects such rows through its foreign key.
func Job(raw models.RawRecord) (*models.Job, error) {
	id, err := identifier(models.KindJob, raw)
	if err != nil {
		return nil, err
	}
	f := fieldsOf{kind: models.KindJob, fields: raw.Fields}

	job := &models.Job{
		ID:          id,
		Title:       f.strOr(FieldTitle, DefaultJobTitle),
		Description: f.strPtr(FieldDescription),
		Category:    f.strOr(FieldCategory, DefaultCategory),
		Priority:    DefaultPriority,
		LocationID:  f.strOr(FieldLocationID, ""),
		Status:      DefaultJobStatus,
		CreatedAt:   f.timePtr(FieldCreatedAt),
		UpdatedAt:   f.timePtr(FieldUpdatedAt),
	}
	if s, ok := f.str(FieldStatus); ok {
		if st, ok := jobStatusRenames[enumKey(s)]; ok {
			job.Status = st
		}
	}
	if s, ok := f.str(FieldPriority); ok {
		if p, ok := priorityRenames[enumKey(s)]; ok {
			job.Priority = p
		}
	}
	if mins := f.nonNegative(FieldDurationMin); mins != nil {
		m := int(math.Round(*mins))
		job.EstimatedDurationMinutes = &m
	}
	return job, nil
}

// Media normalizes a media document. Hours are resolved later by the derive package.
func Media(raw models.RawRecord) (*models.Media, error) {
	id, err := identifier(models.KindMedia, raw)
	if err != nil {
		return nil, err
	}
	f := fieldsOf{kind: models.KindMedia, fields: raw.Fields}

	m := &models.Media{
		ID:              id,
		JobID:           f.strOr(FieldJobID, ""),
		LocationID:      f.strPtr(FieldLocationID),
		URL:             f.strOr(FieldURL, ""),
		ThumbnailURL:    f.strPtr(FieldThumbnailURL),
		Kind:            mediaKind(f),
		DurationSeconds: f.nonNegative(FieldDurationSec),
		DurationHours:   f.nonNegative(FieldDurationHours),
		SizeGB:          f.nonNegative(FieldSizeGB),
		UploaderID:      f.strOr(FieldUploaderID, ""),
		UploadedAt:      f.timePtr(FieldUploadedAt),
		CreatedAt:       f.timePtr(FieldCreatedAt),
		UpdatedAt:       f.timePtr(FieldUpdatedAt),
	}
	if b := f.nonNegative(FieldSizeBytes); b != nil {
		n := int64(*b)
		m.SizeBytes = &n
	}
	return m, nil
}

func mediaKind(f fieldsOf) models.MediaKind {
	s, ok := f.str(FieldMediaKind)
	if !ok {
		return DefaultMediaKind
	}
	key := enumKey(s)
	if k, ok := mediaKindRenames[key]; ok {
		return k
	}
	// content types such as "video/mp4"
	if major, _, found := strings.Cut(key, "/"); found {
		if k, ok := mediaKindRenames[major]; ok {
			return k
		}
	}
	return DefaultMediaKind
}
