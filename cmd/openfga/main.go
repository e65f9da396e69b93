package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"raceday/internal/config"

	openfga "github.com/openfga/go-sdk"
	"github.com/openfga/go-sdk/client"
	"github.com/openfga/go-sdk/credentials"
)

// Bootstraps the OpenFGA store used for event organizer checks. The model is
// deliberately small: events have organizers, and an organizer is a user.
func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	command := os.Args[1]

	cfg := config.Load()

	fgaClient, err := newSdkClient(cfg.OpenFGA)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create OpenFGA client: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case "list-stores":
		handleListStores(ctx, fgaClient)
	case "create-store":
		handleCreateStore(ctx, fgaClient, os.Args[2:])
	case "write-model":
		handleWriteModel(ctx, fgaClient)
	case "show-model":
		handleShowModel()
	default:
		printUsage()
	}
}

func newSdkClient(cfg config.OpenFGAConfig) (*client.OpenFgaClient, error) {
	return client.NewSdkClient(&client.ClientConfiguration{
		ApiHost: cfg.APIHost,
		StoreId: cfg.StoreID,
		Credentials: &credentials.Credentials{
			Method: credentials.CredentialsMethodApiToken,
			Config: &credentials.Config{
				ApiToken: cfg.APIToken,
			},
		},
	})
}

// authorizationModel is the schema the authz package writes tuples against.
func authorizationModel() openfga.WriteAuthorizationModelRequest {
	return openfga.WriteAuthorizationModelRequest{
		SchemaVersion: "1.1",
		TypeDefinitions: []openfga.TypeDefinition{
			{
				Type: "user",
			},
			{
				Type: "event",
				Relations: &map[string]openfga.Userset{
					"organizer": {This: &map[string]interface{}{}},
				},
				Metadata: &openfga.Metadata{
					Relations: &map[string]openfga.RelationMetadata{
						"organizer": {
							DirectlyRelatedUserTypes: &[]openfga.RelationReference{
								{Type: "user"},
							},
						},
					},
				},
			},
		},
	}
}

func handleListStores(ctx context.Context, fgaClient *client.OpenFgaClient) {
	response, err := fgaClient.ListStores(ctx).Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list stores: %v\n", err)
		os.Exit(1)
	}

	for _, store := range response.GetStores() {
		fmt.Printf("Store ID: %s, Name: %s\n", store.GetId(), store.GetName())
	}
}

func handleCreateStore(ctx context.Context, fgaClient *client.OpenFgaClient, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: openfga create-store <name>")
		return
	}

	response, err := fgaClient.CreateStore(ctx).Body(client.ClientCreateStoreRequest{
		Name: args[0],
	}).Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create store: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created store with ID: %s\n", response.GetId())
}

func handleWriteModel(ctx context.Context, fgaClient *client.OpenFgaClient) {
	model := authorizationModel()
	response, err := fgaClient.WriteAuthorizationModel(ctx).Body(client.ClientWriteAuthorizationModelRequest{
		SchemaVersion:   model.SchemaVersion,
		TypeDefinitions: model.TypeDefinitions,
	}).Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write authorization model: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Authorization model written with ID: %s\n", response.GetAuthorizationModelId())
}

func handleShowModel() {
	out, err := json.MarshalIndent(authorizationModel(), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal model: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func printUsage() {
	fmt.Println("Usage: openfga <command>")
	fmt.Println("Commands:")
	fmt.Println("  list-stores            List OpenFGA stores")
	fmt.Println("  create-store <name>    Create a new OpenFGA store")
	fmt.Println("  write-model            Write the authorization model to the configured store")
	fmt.Println("  show-model             Print the authorization model as JSON")
}
