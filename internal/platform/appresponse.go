package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rflorenc/arcfg/internal/models"
	log "github.com/sirupsen/logrus"
)

// TokenPath is the AppResponse token exchange endpoint.
const TokenPath = "/api/mgmt.aaa/2.0/token"

var (
	// ErrNoToken is returned when the token endpoint succeeds without a token.
	ErrNoToken = errors.New("token response missing access_token")

	// ErrBulkDelete marks a failure of the clear phase of a replace.
	ErrBulkDelete = errors.New("bulk delete failed")

	// ErrMerge marks a failure of the install phase of a replace. The
	// collection on the appliance is empty at that point.
	ErrMerge = errors.New("merge failed")
)

type userCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenRequest is the body posted to the token endpoint.
type TokenRequest struct {
	GenerateRefreshToken bool            `json:"generate_refresh_token"`
	UserCredentials      userCredentials `json:"user_credentials"`
}

// TokenResponse holds the fields used from the token endpoint reply.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// collectionResponse is the envelope of every collection GET.
type collectionResponse struct {
	Items models.Collection `json:"items"`
}

type bulkDeleteRequest struct {
	DeleteAll bool `json:"delete_all"`
}

// AppResponse implements Platform for the AppResponse REST API.
type AppResponse struct {
	conn   *models.Connection
	client *Client
}

var _ Platform = (*AppResponse)(nil)

// NewAppResponse creates a Platform backed by client.
func NewAppResponse(conn *models.Connection, client *Client) *AppResponse {
	return &AppResponse{conn: conn, client: client}
}

func (p *AppResponse) Connection() *models.Connection {
	return p.conn
}

// Authenticate posts the connection's credentials to the token endpoint.
// There is no retry and no refresh: the token is used for the whole process.
func (p *AppResponse) Authenticate(ctx context.Context) error {
	token, err := RequestToken(ctx, p.client, p.conn.Username, p.conn.Password)
	if err != nil {
		return err
	}
	p.client.SetToken(token)
	log.WithFields(log.Fields{"host": p.conn.Host, "user": p.conn.Username}).Debug("authenticated")
	return nil
}

// RequestToken performs the token exchange and returns the access token.
func RequestToken(ctx context.Context, c *Client, username, password string) (string, error) {
	payload := TokenRequest{
		GenerateRefreshToken: false,
		UserCredentials:      userCredentials{Username: username, Password: password},
	}
	body, _, err := c.Post(ctx, TokenPath, payload)
	if err != nil {
		return "", err
	}
	var resp TokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if resp.AccessToken == "" {
		return "", ErrNoToken
	}
	return resp.AccessToken, nil
}

// ListObjects reads the "items" array of the type's collection.
func (p *AppResponse) ListObjects(ctx context.Context, ot models.ObjectType) (models.Collection, error) {
	var resp collectionResponse
	if err := p.client.GetJSON(ctx, ot.CollectionPath(), &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return models.Collection{}, nil
	}
	return resp.Items, nil
}

// ReplaceObjects clears the collection with bulk_delete, then installs items
// with merge. A merge failure leaves the collection empty; nothing is rolled back.
func (p *AppResponse) ReplaceObjects(ctx context.Context, ot models.ObjectType, items models.Collection) error {
	if _, _, err := p.client.Post(ctx, ot.BulkDeletePath(), bulkDeleteRequest{DeleteAll: true}); err != nil {
		return fmt.Errorf("%w: %w", ErrBulkDelete, err)
	}

	if items == nil {
		items = models.Collection{}
	}
	payload := map[string]models.Collection{ot.BodyKey: items}
	if _, _, err := p.client.Post(ctx, ot.MergePath(), payload); err != nil {
		return fmt.Errorf("%w: %w", ErrMerge, err)
	}
	return nil
}
