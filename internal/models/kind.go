// Package models defines the canonical records mirrored from the document store
// into the relational store.
package models

import "fmt"

// Kind identifies an entity kind handled by the sync pipeline.
type Kind string

const (
	KindLocation Kind = "location"
	KindJob      Kind = "job"
	KindMedia    Kind = "media"
)

// Kinds lists all kinds in dependency order (referenced kinds first).
var Kinds = []Kind{KindLocation, KindJob, KindMedia}

// ParseKind accepts singular and plural kind names.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "location", "locations":
		return KindLocation, nil
	case "job", "jobs", "task", "tasks":
		return KindJob, nil
	case "media", "medias":
		return KindMedia, nil
	}
	return "", fmt.Errorf("unknown kind %q (expected location, job or media)", s)
}

// RawRecord is one schemaless document as read from the document store.
type RawRecord struct {
	ID     string
	Fields map[string]any
}
