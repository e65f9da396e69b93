package authz

import (
	"context"
	"fmt"
	"log/slog"

	"raceday/internal/config"

	"github.com/openfga/go-sdk/client"
	"github.com/openfga/go-sdk/credentials"
)

// Client wraps the OpenFGA SDK. When disabled it answers every check with
// allow, leaving the local role/ownership rules as the only authority.
type Client struct {
	fga    *client.OpenFgaClient
	config config.OpenFGAConfig
}

func NewClient(cfg config.OpenFGAConfig) (*Client, error) {
	if !cfg.Enabled {
		slog.Info("OpenFGA is disabled")
		return &Client{config: cfg}, nil
	}

	fgaClient, err := client.NewSdkClient(&client.ClientConfiguration{
		ApiHost: cfg.APIHost,
		StoreId: cfg.StoreID,
		Credentials: &credentials.Credentials{
			Method: credentials.CredentialsMethodApiToken,
			Config: &credentials.Config{
				ApiToken: cfg.APIToken,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenFGA client: %w", err)
	}

	slog.Info("OpenFGA client initialized", "store_id", cfg.StoreID, "model_id", cfg.ModelID)

	return &Client{fga: fgaClient, config: cfg}, nil
}

func (c *Client) IsEnabled() bool {
	return c.config.Enabled && c.fga != nil
}

func (c *Client) CheckPermission(ctx context.Context, userID, relation, objectType, objectID string) (bool, error) {
	if !c.IsEnabled() {
		return true, nil
	}

	body := client.ClientCheckRequest{
		User:     fmt.Sprintf("user:%s", userID),
		Relation: relation,
		Object:   fmt.Sprintf("%s:%s", objectType, objectID),
	}

	response, err := c.fga.Check(ctx).Body(body).Execute()
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return response.GetAllowed(), nil
}

func (c *Client) WriteTuple(ctx context.Context, userID, relation, objectType, objectID string) error {
	if !c.IsEnabled() {
		return nil
	}

	body := client.ClientWriteRequest{
		Writes: []client.ClientTupleKey{{
			User:     fmt.Sprintf("user:%s", userID),
			Relation: relation,
			Object:   fmt.Sprintf("%s:%s", objectType, objectID),
		}},
	}

	if _, err := c.fga.Write(ctx).Body(body).Execute(); err != nil {
		return fmt.Errorf("failed to write tuple: %w", err)
	}
	return nil
}

func (c *Client) DeleteTuple(ctx context.Context, userID, relation, objectType, objectID string) error {
	if !c.IsEnabled() {
		return nil
	}

	body := client.ClientWriteRequest{
		Deletes: []client.ClientTupleKeyWithoutCondition{{
			User:     fmt.Sprintf("user:%s", userID),
			Relation: relation,
			Object:   fmt.Sprintf("%s:%s", objectType, objectID),
		}},
	}

	if _, err := c.fga.Write(ctx).Body(body).Execute(); err != nil {
		return fmt.Errorf("failed to delete tuple: %w", err)
	}
	return nil
}
