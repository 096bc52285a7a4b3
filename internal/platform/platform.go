package platform

import (
	"context"

	"github.com/rflorenc/arcfg/internal/models"
)

// Platform defines the operations the replication workflow needs from an appliance.
type Platform interface {
	// Authenticate exchanges credentials for a bearer token and keeps it
	// for later calls.
	Authenticate(ctx context.Context) error

	// ListObjects returns the collection of the given type, in appliance order.
	ListObjects(ctx context.Context, ot models.ObjectType) (models.Collection, error)

	// ReplaceObjects deletes every object of the type, then merges items.
	ReplaceObjects(ctx context.Context, ot models.ObjectType, items models.Collection) error

	// Info returns best-effort appliance details (empty on failure).
	Info(ctx context.Context) *InfoResponse

	// Connection returns the connection the platform talks to.
	Connection() *models.Connection
}

// NewPlatform creates an AppResponse Platform for a connection.
func NewPlatform(conn *models.Connection) (Platform, error) {
	client, err := NewClient(conn)
	if err != nil {
		return nil, err
	}
	return NewAppResponse(conn, client), nil
}
