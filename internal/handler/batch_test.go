package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/conduitdb/conduit/internal/model"
)

func customersEndpoint(allowUpdates bool, maxBatch int) model.BatchEndpoint {
	return model.BatchEndpoint{
		Name:         "customers-upsert",
		Service:      "testdb",
		Table:        "customers",
		AllowUpdates: allowUpdates,
		MaxBatchSize: maxBatch,
		Mappings: []model.FieldMapping{
			{RequestField: "CustomerId", StorageColumn: "customer_id", Required: true, IsKey: true},
			{RequestField: "Region", StorageColumn: "region", Required: true, IsKey: true},
			{RequestField: "Name", StorageColumn: "name"},
			{RequestField: "Status", StorageColumn: "status", DefaultValue: "new"},
		},
	}
}

func TestBatch_InsertAll(t *testing.T) {
	env := newTestEnv(t)
	env.createCustomersTable(t)
	env.seedBatchEndpoint(t, customersEndpoint(true, 0))

	body := toJSON(t, map[string]interface{}{
		"records": []map[string]interface{}{
			{"CustomerId": 1, "Region": "EU", "Name": "Alice"},
			{"CustomerId": 2, "Region": "EU", "Name": "Bob"},
			{"CustomerId": 1, "Region": "US", "Name": "Alice US"},
		},
	})
	rr := env.do(t, "POST", "/api/v1/batch/customers-upsert", body)
	assertStatus(t, rr, http.StatusOK)

	var resp model.BatchResponse
	decodeJSON(t, rr, &resp)
	if resp.Result != model.ResultOK {
		t.Errorf("Result = %q, want OK", resp.Result)
	}
	if resp.Inserted != 3 || resp.Updated != 0 || resp.Errors != 0 {
		t.Errorf("counts = %d/%d/%d, want 3/0/0", resp.Inserted, resp.Updated, resp.Errors)
	}
	if count := env.countRows(t, "customers"); count != 3 {
		t.Errorf("row count = %d, want 3", count)
	}

	// Default applied when the field is absent.
	conn, _ := env.registry.Get("testdb")
	var status string
	conn.DB.QueryRowx("SELECT status FROM customers WHERE customer_id = 1 AND region = 'EU'").Scan(&status)
	if status != "new" {
		t.Errorf("default status = %q, want new", status)
	}
}

func TestBatch_ResubmitIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.createCustomersTable(t)
	env.seedBatchEndpoint(t, customersEndpoint(true, 0))

	records := map[string]interface{}{
		"records": []map[string]interface{}{
			{"CustomerId": 1, "Region": "EU", "Name": "Alice"},
			{"CustomerId": 2, "Region": "EU", "Name": "Bob"},
		},
	}

	rr := env.do(t, "POST", "/api/v1/batch/customers-upsert", toJSON(t, records))
	assertStatus(t, rr, http.StatusOK)

	// Same batch again: every record routes to update, nothing is duplicated.
	rr = env.do(t, "POST", "/api/v1/batch/customers-upsert", toJSON(t, records))
	assertStatus(t, rr, http.StatusOK)

	var resp model.BatchResponse
	decodeJSON(t, rr, &resp)
	if resp.Inserted != 0 || resp.Updated != 2 || resp.Errors != 0 {
		t.Errorf("counts = %d/%d/%d, want 0/2/0", resp.Inserted, resp.Updated, resp.Errors)
	}
	if resp.Result != model.ResultOK {
		t.Errorf("Result = %q, want OK", resp.Result)
	}
	if count := env.countRows(t, "customers"); count != 2 {
		t.Errorf("row count = %d, want 2", count)
	}
}

func TestBatch_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	env.createCustomersTable(t)
	env.seedBatchEndpoint(t, customersEndpoint(true, 0))

	// Middle record lacks the required Region field.
	body := toJSON(t, map[string]interface{}{
		"records": []map[string]interface{}{
			{"CustomerId": 1, "Region": "EU", "Name": "Alice"},
			{"CustomerId": 2, "Name": "Bob"},
			{"CustomerId": 3, "Region": "EU", "Name": "Carol"},
		},
	})
	rr := env.do(t, "POST", "/api/v1/batch/customers-upsert", body)
	assertStatus(t, rr, http.StatusOK)

	var resp model.BatchResponse
	decodeJSON(t, rr, &resp)
	if resp.Result != model.ResultPartial {
		t.Errorf("Result = %q, want PARTIAL", resp.Result)
	}
	if resp.Inserted != 2 || resp.Updated != 0 || resp.Errors != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/0/1", resp.Inserted, resp.Updated, resp.Errors)
	}
	if len(resp.ErrorDetails) != 1 || !strings.Contains(resp.ErrorDetails[0], "Region") {
		t.Errorf("ErrorDetails = %v, want required-field error naming Region", resp.ErrorDetails)
	}
	if count := env.countRows(t, "customers"); count != 2 {
		t.Errorf("row count = %d, want 2", count)
	}
}

func TestBatch_AllFail(t *testing.T) {
	env := newTestEnv(t)
	env.createCustomersTable(t)
	env.seedBatchEndpoint(t, customersEndpoint(true, 0))

	body := toJSON(t, map[string]interface{}{
		"records": []map[string]interface{}{
			{"Name": "no key"},
			{"Name": "also no key"},
		},
	})
	rr := env.do(t, "POST", "/api/v1/batch/customers-upsert", body)
	assertStatus(t, rr, http.StatusOK)

	var resp model.BatchResponse
	decodeJSON(t, rr, &resp)
	if resp.Result != model.ResultKO {
		t.Errorf("Result = %q, want KO", resp.Result)
	}
	if resp.Errors != 2 {
		t.Errorf("Errors = %d, want 2", resp.Errors)
	}
	// Counts and details are present even in the all-error case.
	if len(resp.ErrorDetails) != 2 {
		t.Errorf("ErrorDetails = %v, want 2 entries", resp.ErrorDetails)
	}
}

func TestBatch_UpdatesNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	env.createCustomersTable(t)
	env.seedBatchEndpoint(t, customersEndpoint(false, 0))
	env.exec(t, `INSERT INTO customers (customer_id, region, name, status) VALUES (1, 'EU', 'Alice', 'active')`)

	body := toJSON(t, map[string]interface{}{
		"records": []map[string]interface{}{
			{"CustomerId": 1, "Region": "EU", "Name": "Alice Changed"},
		},
	})
	rr := env.do(t, "POST", "/api/v1/batch/customers-upsert", body)
	assertStatus(t, rr, http.StatusOK)

	var resp model.BatchResponse
	decodeJSON(t, rr, &resp)
	if resp.Result != model.ResultKO {
		t.Errorf("Result = %q, want KO", resp.Result)
	}
	if len(resp.ErrorDetails) != 1 || !strings.Contains(resp.ErrorDetails[0], "updates are not allowed") {
		t.Errorf("ErrorDetails = %v", resp.ErrorDetails)
	}

	// The existing row is untouched.
	conn, _ := env.registry.Get("testdb")
	var name string
	conn.DB.QueryRowx("SELECT name FROM customers WHERE customer_id = 1 AND region = 'EU'").Scan(&name)
	if name != "Alice" {
		t.Errorf("name = %q, want Alice", name)
	}
}

func TestBatch_OverCeiling(t *testing.T) {
	env := newTestEnv(t)
	env.createCustomersTable(t)
	env.seedBatchEndpoint(t, customersEndpoint(true, 2))

	body := toJSON(t, map[string]interface{}{
		"records": []map[string]interface{}{
			{"CustomerId": 1, "Region": "EU"},
			{"CustomerId": 2, "Region": "EU"},
			{"CustomerId": 3, "Region": "EU"},
		},
	})
	rr := env.do(t, "POST", "/api/v1/batch/customers-upsert", body)
	assertStatus(t, rr, http.StatusBadRequest)

	var resp model.BatchResponse
	decodeJSON(t, rr, &resp)
	if resp.Result != model.ResultKO {
		t.Errorf("Result = %q, want KO", resp.Result)
	}
	// Whole-call rejection: zero side effects.
	if count := env.countRows(t, "customers"); count != 0 {
		t.Errorf("row count = %d, want 0", count)
	}
}

func TestBatch_CeilingBoundary(t *testing.T) {
	env := newTestEnv(t)
	env.createCustomersTable(t)
	env.seedBatchEndpoint(t, customersEndpoint(true, 2))

	// Exactly at the ceiling is accepted.
	body := toJSON(t, map[string]interface{}{
		"records": []map[string]interface{}{
			{"CustomerId": 1, "Region": "EU"},
			{"CustomerId": 2, "Region": "EU"},
		},
	})
	rr := env.do(t, "POST", "/api/v1/batch/customers-upsert", body)
	assertStatus(t, rr, http.StatusOK)

	var resp model.BatchResponse
	decodeJSON(t, rr, &resp)
	if resp.Inserted != 2 {
		t.Errorf("Inserted = %d, want 2", resp.Inserted)
	}
}

func TestBatch_LoneObjectPayload(t *testing.T) {
	env := newTestEnv(t)
	env.createCustomersTable(t)
	env.seedBatchEndpoint(t, customersEndpoint(true, 0))

	body := toJSON(t, map[string]interface{}{
		"CustomerId": 7, "Region": "EU", "Name": "Solo",
	})
	rr := env.do(t, "POST", "/api/v1/batch/customers-upsert", body)
	assertStatus(t, rr, http.StatusOK)

	var resp model.BatchResponse
	decodeJSON(t, rr, &resp)
	if resp.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", resp.Inserted)
	}
}

func TestBatch_CaseInsensitiveFields(t *testing.T) {
	env := newTestEnv(t)
	env.createCustomersTable(t)
	env.seedBatchEndpoint(t, customersEndpoint(true, 0))

	body := toJSON(t, map[string]interface{}{
		"records": []map[string]interface{}{
			{"customerid": 1, "REGION": "EU", "name": "Alice"},
		},
	})
	rr := env.do(t, "POST", "/api/v1/batch/customers-upsert", body)
	assertStatus(t, rr, http.StatusOK)

	var resp model.BatchResponse
	decodeJSON(t, rr, &resp)
	if resp.Inserted != 1 || resp.Errors != 0 {
		t.Errorf("counts = %d inserted/%d errors, want 1/0; details: %v",
			resp.Inserted, resp.Errors, resp.ErrorDetails)
	}
}

func TestBatch_UnknownEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "POST", "/api/v1/batch/nope", toJSON(t, map[string]interface{}{"records": []interface{}{}}))
	assertStatus(t, rr, http.StatusNotFound)
}

func TestBatch_EmptyBatch(t *testing.T) {
	env := newTestEnv(t)
	env.createCustomersTable(t)
	env.seedBatchEndpoint(t, customersEndpoint(true, 0))

	rr := env.do(t, "POST", "/api/v1/batch/customers-upsert",
		toJSON(t, map[string]interface{}{"records": []interface{}{}}))
	assertStatus(t, rr, http.StatusBadRequest)
}
