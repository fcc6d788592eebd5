package dialect

import (
	"net/url"
	"regexp"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"

	_ "github.com/jackc/pgx/v5/stdlib"       // postgres
	_ "github.com/microsoft/go-mssqldb"      // mssql
	_ "github.com/sijms/go-ora/v2"           // oracle
	_ "github.com/snowflakedb/gosnowflake"   // snowflake
	_ "modernc.org/sqlite"                   // sqlite
)

// SanitizeDSN normalizes driver-specific DSN quirks before opening.
// MySQL DSNs are rewritten to use the tcp() wrapper required by
// go-sql-driver; other drivers pass through unchanged.
func SanitizeDSN(driver, dsn string) string {
	if driver == "mysql" {
		return sanitizeMySQLDSN(dsn)
	}
	return dsn
}

// mysqlBareHostPort matches "user:pass@host:port/db" (no tcp() wrapper).
var mysqlBareHostPort = regexp.MustCompile(`^(.+)@([^(@]+:\d+)(/.*)?$`)

// sanitizeMySQLDSN normalizes a MySQL DSN so that go-sql-driver/mysql can
// parse it. The driver requires user:pass@tcp(host:port)/dbname; users
// commonly omit the tcp() wrapper or the "tcp" keyword, which makes the
// driver's parser treat part of the credentials as a network name.
func sanitizeMySQLDSN(dsn string) string {
	if cfg, err := mysqldriver.ParseDSN(dsn); err == nil && (cfg.Net == "tcp" || cfg.Net == "unix") {
		return cfg.FormatDSN()
	}

	// user:pass@(host:port)/db — missing "tcp" keyword.
	if idx := strings.LastIndex(dsn, "@("); idx >= 0 {
		fixed := dsn[:idx] + "@tcp" + dsn[idx+1:]
		if cfg, err := mysqldriver.ParseDSN(fixed); err == nil {
			return cfg.FormatDSN()
		}
	}

	// user:pass@host:port/db — no parens at all.
	if m := mysqlBareHostPort.FindStringSubmatch(dsn); m != nil {
		fixed := m[1] + "@tcp(" + m[2] + ")" + m[3]
		if cfg, err := mysqldriver.ParseDSN(fixed); err == nil {
			return cfg.FormatDSN()
		}
	}

	// Let the connect call produce the error.
	return dsn
}

var (
	// user:pass@ prefix in mysql/oracle-style DSNs (no URL scheme).
	dsnUserinfoPass = regexp.MustCompile(`^([^:@/]+):[^@]*@`)
	// password=... in key=value DSNs (mssql, snowflake, odbc style).
	dsnPasswordKV = regexp.MustCompile(`(?i)(password|pwd)=[^;&\s]*`)
)

// RedactDSN masks credentials in a DSN for display and logging. It is
// best-effort over the common DSN shapes; an unrecognized DSN passes
// through untouched rather than risking a mangled display.
func RedactDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err == nil && u.User != nil {
			if _, has := u.User.Password(); has {
				u.User = url.UserPassword(u.User.Username(), "xxxx")
				return strings.ReplaceAll(u.String(), ":xxxx@", ":****@")
			}
		}
		return dsnPasswordKV.ReplaceAllString(dsn, "$1=****")
	}
	if dsnUserinfoPass.MatchString(dsn) {
		return dsnUserinfoPass.ReplaceAllString(dsn, "$1:****@")
	}
	return dsnPasswordKV.ReplaceAllString(dsn, "$1=****")
}
