package db

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/portalsync/internal/models"
)

// schemaSQL declares one schemaless table per kind. The portal writes these
// documents with drifting field names, so no fields are defined here.
func schemaSQL(table func(models.Kind) string) string {
	var b strings.Builder
	for _, kind := range models.Kinds {
		fmt.Fprintf(&b, "DEFINE TABLE IF NOT EXISTS %s SCHEMALESS;\n", table(kind))
	}
	return b.String()
}
