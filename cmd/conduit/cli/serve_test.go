package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/conduitdb/conduit/internal/config"
	"github.com/conduitdb/conduit/internal/model"
)

func TestSyncDeclarations_SkipsInvalidEndpoints(t *testing.T) {
	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ycfg := &config.YAMLConfig{
		QueryEndpoints: []config.QueryEndpointYAML{
			{
				Name:     "orders",
				Service:  "testdb",
				Template: "SELECT * FROM orders {{where}}",
			},
			{
				Name:    "broken-query",
				Service: "testdb",
				// No template: the builder rejects it.
			},
		},
		BatchEndpoints: []config.BatchEndpointYAML{
			{
				Name:    "customers",
				Service: "testdb",
				Table:   "customers",
				Mappings: []model.FieldMapping{
					{RequestField: "Id", StorageColumn: "id", Required: true, IsKey: true},
					{RequestField: "Name", StorageColumn: "name"},
				},
			},
			{
				Name:    "broken-batch",
				Service: "testdb",
				Table:   "customers",
				// No key mapping: the engine rejects it.
				Mappings: []model.FieldMapping{
					{RequestField: "Name", StorageColumn: "name"},
				},
			},
		},
	}

	if err := syncDeclarations(context.Background(), store, ycfg, logger); err != nil {
		t.Fatalf("syncDeclarations: %v", err)
	}

	ctx := context.Background()
	if _, err := store.GetQueryEndpoint(ctx, "orders"); err != nil {
		t.Errorf("valid query endpoint not saved: %v", err)
	}
	if _, err := store.GetQueryEndpoint(ctx, "broken-query"); err == nil {
		t.Error("invalid query endpoint must not be saved")
	}
	if _, err := store.GetBatchEndpoint(ctx, "customers"); err != nil {
		t.Errorf("valid batch endpoint not saved: %v", err)
	}
	if _, err := store.GetBatchEndpoint(ctx, "broken-batch"); err == nil {
		t.Error("invalid batch endpoint must not be saved")
	}
}
