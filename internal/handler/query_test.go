package handler

import (
	"net/http"
	"testing"

	"github.com/conduitdb/conduit/internal/model"
)

func ordersQueryEndpoint() model.QueryEndpoint {
	return model.QueryEndpoint{
		Name:     "orders-by-status",
		Service:  "testdb",
		Template: "SELECT id, status, total FROM orders {{where}} ORDER BY id",
		Conditions: []model.ParameterCondition{
			{Name: "Status", SQLWhenPresent: "status = :status", BindParameter: true},
			{Name: "MinTotal", SQLWhenPresent: "total >= :min_total", BindParameter: true},
		},
		Mappings: []model.FieldMapping{
			{RequestField: "Status", StorageColumn: "status"},
			{RequestField: "MinTotal", StorageColumn: "min_total"},
		},
	}
}

func seedOrders(t *testing.T, env *testEnv) {
	t.Helper()
	env.exec(t, `CREATE TABLE orders (id INTEGER PRIMARY KEY, status TEXT, total REAL)`)
	env.exec(t, `INSERT INTO orders (id, status, total) VALUES (1, 'active', 10.0)`)
	env.exec(t, `INSERT INTO orders (id, status, total) VALUES (2, 'active', 99.5)`)
	env.exec(t, `INSERT INTO orders (id, status, total) VALUES (3, 'closed', 50.0)`)
}

func TestQuery_PresentParameter(t *testing.T) {
	env := newTestEnv(t)
	seedOrders(t, env)
	env.seedQueryEndpoint(t, ordersQueryEndpoint())

	rr := env.do(t, "POST", "/api/v1/query/orders-by-status",
		toJSON(t, map[string]interface{}{"Status": "active"}))
	assertStatus(t, rr, http.StatusOK)

	var resp model.ReadResponse
	decodeJSON(t, rr, &resp)
	if resp.Result != model.ResultOK {
		t.Errorf("Result = %q, want OK", resp.Result)
	}
	if resp.ProvidedParameters != "Status" {
		t.Errorf("ProvidedParameters = %q, want Status", resp.ProvidedParameters)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("got %d records, want 2; body: %s", len(resp.Records), rr.Body.String())
	}
}

func TestQuery_MultipleParameters(t *testing.T) {
	env := newTestEnv(t)
	seedOrders(t, env)
	env.seedQueryEndpoint(t, ordersQueryEndpoint())

	rr := env.do(t, "POST", "/api/v1/query/orders-by-status",
		toJSON(t, map[string]interface{}{"Status": "active", "MinTotal": 50}))
	assertStatus(t, rr, http.StatusOK)

	var resp model.ReadResponse
	decodeJSON(t, rr, &resp)
	if resp.ProvidedParameters != "Status, MinTotal" {
		t.Errorf("ProvidedParameters = %q, want %q", resp.ProvidedParameters, "Status, MinTotal")
	}
	if len(resp.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(resp.Records))
	}
}

func TestQuery_NoParameters(t *testing.T) {
	env := newTestEnv(t)
	seedOrders(t, env)
	env.seedQueryEndpoint(t, ordersQueryEndpoint())

	rr := env.do(t, "POST", "/api/v1/query/orders-by-status",
		toJSON(t, map[string]interface{}{}))
	assertStatus(t, rr, http.StatusOK)

	var resp model.ReadResponse
	decodeJSON(t, rr, &resp)
	if resp.ProvidedParameters != "" {
		t.Errorf("ProvidedParameters = %q, want empty", resp.ProvidedParameters)
	}
	if len(resp.Records) != 3 {
		t.Fatalf("got %d records, want 3 (marker stripped, unfiltered)", len(resp.Records))
	}
}

func TestQuery_CaseInsensitiveParameter(t *testing.T) {
	env := newTestEnv(t)
	seedOrders(t, env)
	env.seedQueryEndpoint(t, ordersQueryEndpoint())

	rr := env.do(t, "POST", "/api/v1/query/orders-by-status",
		toJSON(t, map[string]interface{}{"STATUS": "closed"}))
	assertStatus(t, rr, http.StatusOK)

	var resp model.ReadResponse
	decodeJSON(t, rr, &resp)
	// Provided names are reported under their declared spelling.
	if resp.ProvidedParameters != "Status" {
		t.Errorf("ProvidedParameters = %q, want Status", resp.ProvidedParameters)
	}
	if len(resp.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(resp.Records))
	}
}

func TestQuery_AbsentBranch(t *testing.T) {
	env := newTestEnv(t)
	seedOrders(t, env)
	ep := ordersQueryEndpoint()
	ep.Name = "open-orders"
	ep.Conditions = []model.ParameterCondition{
		{Name: "Status", SQLWhenPresent: "status = :status", SQLWhenAbsent: "status <> 'closed'", BindParameter: true},
	}
	env.seedQueryEndpoint(t, ep)

	rr := env.do(t, "POST", "/api/v1/query/open-orders",
		toJSON(t, map[string]interface{}{}))
	assertStatus(t, rr, http.StatusOK)

	var resp model.ReadResponse
	decodeJSON(t, rr, &resp)
	if len(resp.Records) != 2 {
		t.Fatalf("got %d records, want 2 (absent branch filters closed)", len(resp.Records))
	}
}

func TestQuery_ExecutionFailureReturnsKO(t *testing.T) {
	env := newTestEnv(t)
	// No orders table exists.
	env.seedQueryEndpoint(t, ordersQueryEndpoint())

	rr := env.do(t, "POST", "/api/v1/query/orders-by-status",
		toJSON(t, map[string]interface{}{"Status": "active"}))
	assertStatus(t, rr, http.StatusInternalServerError)

	var resp model.ReadResponse
	decodeJSON(t, rr, &resp)
	if resp.Result != model.ResultKO {
		t.Errorf("Result = %q, want KO", resp.Result)
	}
	if resp.Reason == "" {
		t.Error("expected a Reason on failure")
	}
	// The raw driver error never reaches the caller.
	if resp.Reason != "query execution failed for endpoint orders-by-status" {
		t.Errorf("Reason = %q leaks internals", resp.Reason)
	}
}

func TestQuery_UnknownEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "POST", "/api/v1/query/nope", toJSON(t, map[string]interface{}{}))
	assertStatus(t, rr, http.StatusNotFound)
}
