// Package normalize maps schema-drifted documents onto canonical records.
//
// Every canonical field is resolved from an ordered list of source field names:
// the first name that is present, non-null and convertible to the field's type
// wins. When none matches, the field's default applies. The tables below are the
// whole policy; the normalizers only read them.
package normalize

import "github.com/raphaelgruber/portalsync/internal/models"

// Canonical field names.
const (
	FieldID             = "id"
	FieldCreatedAt      = "createdAt"
	FieldUpdatedAt      = "updatedAt"
	FieldName           = "name"
	FieldAddress        = "address"
	FieldOrganizationID = "organizationId"
	FieldStatus         = "status"
	FieldActive         = "active"
	FieldCoordinates    = "coordinates"
	FieldLatitude       = "latitude"
	FieldLongitude      = "longitude"
	FieldTitle          = "title"
	FieldDescription    = "description"
	FieldCategory       = "category"
	FieldPriority       = "priority"
	FieldLocationID     = "locationId"
	FieldDurationMin    = "durationMinutes"
	FieldJobID          = "jobId"
	FieldURL            = "url"
	FieldThumbnailURL   = "thumbnailUrl"
	FieldMediaKind      = "mediaKind"
	FieldDurationSec    = "durationSeconds"
	FieldDurationHours  = "durationHours"
	FieldSizeGB         = "sizeGB"
	FieldSizeBytes      = "sizeBytes"
	FieldUploaderID     = "uploaderId"
	FieldUploadedAt     = "uploadedAt"
)

// Defaults applied when no alias resolves.
const (
	DefaultLocationName = "Unnamed Location"
	DefaultJobTitle     = "Unnamed Task"
	DefaultCategory     = "general"
	DefaultJobStatus    = models.JobAvailable
	DefaultPriority     = models.PriorityMedium
	DefaultMediaKind    = models.MediaImage
	DefaultLocStatus    = models.LocationActive
)

var commonAliases = map[string][]string{
	FieldID:        {"id", "uid"},
	FieldCreatedAt: {"createdAt", "created_at", "created"},
	FieldUpdatedAt: {"updatedAt", "updated_at", "updated", "lastModified"},
}

// Aliases holds the ordered source names per kind and canonical field.
var Aliases = map[models.Kind]map[string][]string{
	models.KindLocation: {
		FieldName:           {"name", "title", "locationName"},
		FieldAddress:        {"address", "formattedAddress", "addr"},
		FieldOrganizationID: {"organizationId", "orgId", "partnerId", "organization_id"},
		FieldStatus:         {"status", "state"},
		FieldActive:         {"active", "isActive", "enabled"},
		FieldCoordinates:    {"coordinates", "geo", "location"},
		FieldLatitude:       {"lat", "latitude"},
		FieldLongitude:      {"lng", "lon", "longitude"},
	},
	models.KindJob: {
		FieldTitle:       {"title", "name"},
		FieldDescription: {"description", "details", "notes"},
		FieldCategory:    {"category", "jobType", "type"},
		FieldPriority:    {"priority", "urgency"},
		FieldLocationID:  {"locationId", "location_id", "siteId", "location"},
		FieldStatus:      {"status", "state"},
		FieldDurationMin: {"estimatedDuration", "estimated_duration_minutes"},
	},
	models.KindMedia: {
		FieldJobID:         {"jobId", "job_id", "taskId", "job"},
		FieldLocationID:    {"locationId", "location_id", "location"},
		FieldURL:           {"url", "storageUrl", "downloadUrl", "fileUrl"},
		FieldThumbnailURL:  {"thumbnailUrl", "thumbnail_url", "thumbnail"},
		FieldMediaKind:     {"mediaType", "type"},
		FieldDurationSec:   {"durationSeconds", "duration"},
		FieldDurationHours: {"hours", "durationHours"},
		FieldSizeGB:        {"sizeGB", "size_gb", "fileSizeGB"},
		FieldSizeBytes:     {"fileSize", "file_size", "sizeBytes"},
		FieldUploaderID:    {"uploadedBy", "uploaderId", "userId"},
		FieldUploadedAt:    {"uploadedAt", "createdAt", "timestamp"},
	},
}

// jobStatusRenames maps legacy status values to the current set.
var jobStatusRenames = map[string]models.JobStatus{
	"available":   models.JobAvailable,
	"open":        models.JobAvailable,
	"pending":     models.JobAvailable,
	"new":         models.JobAvailable,
	"claimed":     models.JobClaimed,
	"assigned":    models.JobClaimed,
	"accepted":    models.JobClaimed,
	"in_progress": models.JobInProgress,
	"inprogress":  models.JobInProgress,
	"active":      models.JobInProgress,
	"started":     models.JobInProgress,
	"paused":      models.JobPaused,
	"on_hold":     models.JobPaused,
	"held":        models.JobPaused,
	"completed":   models.JobCompleted,
	"complete":    models.JobCompleted,
	"done":        models.JobCompleted,
	"finished":    models.JobCompleted,
	"failed":      models.JobFailed,
	"error":       models.JobFailed,
	"errored":     models.JobFailed,
	"aborted":     models.JobAborted,
	"cancelled":   models.JobAborted,
	"canceled":    models.JobAborted,
	"abandoned":   models.JobAborted,
}

var priorityRenames = map[string]models.Priority{
	"low":      models.PriorityLow,
	"1":        models.PriorityLow,
	"medium":   models.PriorityMedium,
	"normal":   models.PriorityMedium,
	"2":        models.PriorityMedium,
	"high":     models.PriorityHigh,
	"urgent":   models.PriorityHigh,
	"critical": models.PriorityHigh,
	"3":        models.PriorityHigh,
}

var mediaKindRenames = map[string]models.MediaKind{
	"image":   models.MediaImage,
	"photo":   models.MediaImage,
	"picture": models.MediaImage,
	"video":   models.MediaVideo,
	"clip":    models.MediaVideo,
	"movie":   models.MediaVideo,
}

var locationStatusRenames = map[string]models.LocationStatus{
	"active":   models.LocationActive,
	"enabled":  models.LocationActive,
	"open":     models.LocationActive,
	"inactive": models.LocationInactive,
	"disabled": models.LocationInactive,
	"archived": models.LocationInactive,
	"closed":   models.LocationInactive,
}
