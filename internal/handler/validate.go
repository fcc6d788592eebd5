package handler

import (
	"fmt"

	"github.com/conduitdb/conduit/internal/model"
	"github.com/conduitdb/conduit/internal/query"
	"github.com/conduitdb/conduit/internal/upsert"
)

// validateQueryEndpoint runs the same construction-time validation the
// query path performs, so a bad declaration is rejected before persisting.
func validateQueryEndpoint(ep *model.QueryEndpoint) error {
	if _, err := query.NewConditionalBuilder(ep.Template, ep.DefaultWhere, ep.Conditions, ep.Mappings); err != nil {
		return err
	}
	for _, m := range ep.Mappings {
		if m.StorageColumn == "" {
			continue
		}
		if err := query.ValidateIdentifier(m.StorageColumn); err != nil {
			return fmt.Errorf("mapping %q: %w", m.RequestField, err)
		}
	}
	return nil
}

// validateBatchEndpoint builds a throwaway engine, which validates the table
// and column identifiers and the key-mapping rule.
func validateBatchEndpoint(ep *model.BatchEndpoint) error {
	_, err := upsert.New(upsert.Config{
		Table:        ep.Table,
		Mappings:     ep.Mappings,
		AllowUpdates: ep.AllowUpdates,
		MaxBatchSize: ep.MaxBatchSize,
	})
	return err
}
