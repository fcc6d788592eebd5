package dialect

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
)

func TestLookup(t *testing.T) {
	for _, driver := range []string{"postgres", "mysql", "mssql", "oracle", "snowflake", "sqlite"} {
		d, err := Lookup(driver)
		if err != nil {
			t.Errorf("Lookup(%q): %v", driver, err)
			continue
		}
		if d.Name != driver {
			t.Errorf("Lookup(%q).Name = %q", driver, d.Name)
		}
	}

	if _, err := Lookup("dbase"); err == nil {
		t.Error("unsupported driver should error")
	}
}

func TestBindTypes(t *testing.T) {
	tests := []struct {
		driver string
		want   int
	}{
		{"postgres", sqlx.DOLLAR},
		{"mysql", sqlx.QUESTION},
		{"mssql", sqlx.AT},
		{"oracle", sqlx.NAMED},
		{"snowflake", sqlx.QUESTION},
		{"sqlite", sqlx.QUESTION},
	}
	for _, tt := range tests {
		d, err := Lookup(tt.driver)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.driver, err)
		}
		if d.BindType != tt.want {
			t.Errorf("%s BindType = %d, want %d", tt.driver, d.BindType, tt.want)
		}
	}
}

func TestQuoteQualified(t *testing.T) {
	tests := []struct {
		driver string
		name   string
		want   string
	}{
		{"postgres", "users", `"users"`},
		{"postgres", "public.users", `"public"."users"`},
		{"mysql", "users", "`users`"},
		{"mysql", "mydb.users", "`mydb`.`users`"},
		{"mssql", "dbo.Users", "[dbo].[Users]"},
		{"mssql", "[User Orders]", "[User Orders]"},
		{"postgres", "[User Orders]", `"User Orders"`},
		{"oracle", "HR.EMPLOYEES", `"HR"."EMPLOYEES"`},
		{"sqlite", "orders", `"orders"`},
	}
	for _, tt := range tests {
		d, err := Lookup(tt.driver)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.driver, err)
		}
		if got := d.QuoteQualified(tt.name); got != tt.want {
			t.Errorf("%s QuoteQualified(%q) = %q, want %q", tt.driver, tt.name, got, tt.want)
		}
	}
}

func TestQuoteEscapesEmbeddedQuote(t *testing.T) {
	pg, _ := Lookup("postgres")
	if got := pg.Quote(`we"ird`); got != `"we""ird"` {
		t.Errorf("postgres Quote = %q", got)
	}
	my, _ := Lookup("mysql")
	if got := my.Quote("we`ird"); got != "`we``ird`" {
		t.Errorf("mysql Quote = %q", got)
	}
	ms, _ := Lookup("mssql")
	if got := ms.Quote("we]ird"); got != "[we]]ird]" {
		t.Errorf("mssql Quote = %q", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	t.Cleanup(r.CloseAll)

	if err := r.Connect("db1", "sqlite", ":memory:", PoolConfig{MaxOpenConns: 1}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	conn, err := r.Get("db1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if conn.Dialect.Name != "sqlite" {
		t.Errorf("Dialect.Name = %q", conn.Dialect.Name)
	}

	if err := r.Ping(context.Background(), "db1"); err != nil {
		t.Errorf("Ping: %v", err)
	}

	names := r.ListServices()
	if len(names) != 1 || names[0] != "db1" {
		t.Errorf("ListServices = %v", names)
	}

	if _, err := r.Get("nope"); err == nil {
		t.Error("unknown service should error")
	}

	if err := r.Disconnect("db1"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if _, err := r.Get("db1"); err == nil {
		t.Error("disconnected service should not resolve")
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	r := NewRegistry()
	if err := r.Connect("bad", "dbase", "whatever", PoolConfig{}); err == nil {
		t.Error("unsupported driver should fail Connect")
	}
}
