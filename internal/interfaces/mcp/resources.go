package mcp

import (
	"context"
	"time"

	"github.com/turtacn/KeyIP-Analytics/internal/application/catalog"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
)

// Resource URIs.
const (
	URIStatus          = "patent://status"
	URIIPCDescriptions = "patent://ipc-descriptions"
)

// StatusDocument is the content of patent://status.
type StatusDocument struct {
	Status    string                   `json:"status"`
	CheckedAt time.Time                `json:"checked_at"`
	Databases []catalog.DatabaseStatus `json:"databases"`
}

// RegisterResources registers the status and IPC description resources.
func RegisterResources(d *Dispatcher, cat *catalog.Catalog) error {
	resources := []Resource{
		{
			URI:         URIStatus,
			Name:        "Database status",
			Description: "Backend availability and record counts of every configured database",
			Read: func(ctx context.Context) (interface{}, error) {
				return BuildStatus(ctx, cat, time.Now)
			},
		},
		{
			URI:         URIIPCDescriptions,
			Name:        "IPC descriptions",
			Description: "Descriptions of IPC sections, classes and subclasses used in reports",
			Read: func(context.Context) (interface{}, error) {
				return ipc.Entries(), nil
			},
		},
	}
	for _, r := range resources {
		if err := d.RegisterResource(r); err != nil {
			return err
		}
	}
	return nil
}

// BuildStatus checks every database. Status is "ok" when all are available
// and "degraded" otherwise.
func BuildStatus(ctx context.Context, cat *catalog.Catalog, now func() time.Time) (*StatusDocument, error) {
	dbs, err := cat.Status(ctx)
	if err != nil {
		return nil, err
	}
	doc := &StatusDocument{Status: "ok", CheckedAt: now().UTC().Truncate(time.Second), Databases: dbs}
	for _, db := range dbs {
		if !db.Available {
			doc.Status = "degraded"
			break
		}
	}
	return doc, nil
}
