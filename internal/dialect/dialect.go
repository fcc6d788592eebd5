// Package dialect maps configured database drivers to connection handles
// and the per-driver SQL rules Conduit needs: identifier quoting and
// bind-variable style. All generated SQL uses :named placeholders; sqlx
// rewrites them per dialect at execution time.
package dialect

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/conduitdb/conduit/internal/query"
)

// Dialect holds the SQL rules for one driver.
type Dialect struct {
	// Name is the registered driver key ("postgres", "mysql", ...).
	Name string
	// DriverName is the database/sql driver registration name.
	DriverName string
	// BindType is the sqlx bindvar style used by Rebind.
	BindType int
	// quote wraps a single identifier part.
	quote func(string) string
}

// Quote quotes one identifier part.
func (d Dialect) Quote(name string) string { return d.quote(name) }

// QuoteQualified quotes a possibly schema-qualified, possibly
// bracket-wrapped identifier: "dbo.Users" becomes two quoted parts,
// "[User Orders]" is unwrapped and quoted with the dialect's own style.
func (d Dialect) QuoteQualified(name string) string {
	if inner, ok := query.Unbracket(name); ok {
		return d.quote(inner)
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.quote(p)
	}
	return strings.Join(parts, ".")
}

func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteBacktick(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteBracket(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// dialects is the supported driver table.
var dialects = map[string]Dialect{
	"postgres":  {Name: "postgres", DriverName: "pgx", BindType: sqlx.DOLLAR, quote: quoteDouble},
	"mysql":     {Name: "mysql", DriverName: "mysql", BindType: sqlx.QUESTION, quote: quoteBacktick},
	"mssql":     {Name: "mssql", DriverName: "sqlserver", BindType: sqlx.AT, quote: quoteBracket},
	"oracle":    {Name: "oracle", DriverName: "oracle", BindType: sqlx.NAMED, quote: quoteDouble},
	"snowflake": {Name: "snowflake", DriverName: "snowflake", BindType: sqlx.QUESTION, quote: quoteDouble},
	"sqlite":    {Name: "sqlite", DriverName: "sqlite", BindType: sqlx.QUESTION, quote: quoteDouble},
}

// Lookup returns the dialect for a driver key.
func Lookup(driver string) (Dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported driver %q (available: %v)", driver, Drivers())
	}
	return d, nil
}

// Drivers lists the supported driver keys.
func Drivers() []string {
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	return names
}

// PoolConfig holds database/sql pool tuning applied at Open time.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open connects a sqlx handle for the given driver and DSN and applies pool
// settings. The DSN is normalized first (MySQL tcp() wrapping).
func Open(driver, dsn string, pool PoolConfig) (*sqlx.DB, Dialect, error) {
	d, err := Lookup(driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sqlx.Open(d.DriverName, SanitizeDSN(driver, dsn))
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open %s connection: %w", driver, err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	return db, d, nil
}
