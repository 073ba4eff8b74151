package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
)

// schemaPrefix namespaces every tenant schema so application schemas never
// collide with postgres-owned ones.
const schemaPrefix = "tenant_"

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidTenantID reports whether id is safe to interpolate into a schema name.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// SchemaName returns the schema that holds the given tenant's tables.
func SchemaName(tenantID string) string {
	return schemaPrefix + tenantID
}

// pinSchema points the connection's search_path at the tenant's schema.
// Every statement on the connection afterwards resolves unqualified table
// names inside that schema.
func pinSchema(ctx context.Context, conn *pgxpool.Conn, tenantID string) error {
	_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", SchemaName(tenantID)))
	return err
}

// TenantMiddleware resolves the tenant for the request, pins a pooled
// connection to the tenant's schema and places both on the request context.
// A request that names one tenant in its token and a different one in the
// X-Tenant-ID header is rejected rather than silently resolved.
func TenantMiddleware(pool *pgxpool.Pool, defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID, err := resolveTenantID(c, defaultTenant)
			if err != nil {
				return err
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			if err := pinSchema(ctx, conn, tenantID); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "tenant resolution failed")
			}

			ctx = context.WithValue(ctx, TenantIDKey, tenantID)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_id", tenantID)

			return next(c)
		}
	}
}

// resolveTenantID picks the tenant for a request. The token claim wins, the
// X-Tenant-ID header covers unauthenticated flows, and the configured default
// covers everything else.
func resolveTenantID(c echo.Context, defaultTenant string) (string, error) {
	claim, _ := c.Get("jwt_tenant_id").(string)
	header := c.Request().Header.Get("X-Tenant-ID")

	if claim != "" && header != "" && claim != header {
		return "", echo.NewHTTPError(http.StatusForbidden, "tenant mismatch between token and header")
	}

	tenantID := defaultTenant
	switch {
	case claim != "":
		tenantID = claim
	case header != "":
		tenantID = header
	}

	if !ValidTenantID(tenantID) {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
	}
	return tenantID, nil
}

// ConnFromContext retrieves the tenant-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TenantFromContext retrieves the tenant ID from context.
func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// WithTenantConn acquires a connection, pins it to the tenant's schema and
// runs fn with the connection on the context, mirroring what the request
// middleware does for HTTP traffic. Background work that touches tenant
// tables must go through here; a bare pool connection resolves table names
// against the default search_path and never sees tenant data.
func WithTenantConn(ctx context.Context, pool *pgxpool.Pool, tenantID string, fn func(ctx context.Context) error) error {
	if !ValidTenantID(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %s", tenantID)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := pinSchema(ctx, conn, tenantID); err != nil {
		return fmt.Errorf("pin schema %s: %w", SchemaName(tenantID), err)
	}

	scoped := context.WithValue(ctx, TenantIDKey, tenantID)
	scoped = context.WithValue(scoped, DBConnKey, conn)
	fnErr := fn(scoped)

	// The connection goes back to the pool; drop the pinned search_path so
	// the next borrower starts from the session default.
	if _, err := conn.Exec(ctx, "RESET search_path"); err != nil && fnErr == nil {
		return fmt.Errorf("reset search_path: %w", err)
	}
	return fnErr
}

// ListTenantSchemas returns the IDs of every tenant that has a schema in the
// database, derived from the schema catalog.
func ListTenantSchemas(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx,
		`SELECT schema_name FROM information_schema.schemata WHERE schema_name LIKE $1`,
		schemaPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("list tenant schemas: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var schema string
		if err := rows.Scan(&schema); err != nil {
			return nil, fmt.Errorf("scan schema name: %w", err)
		}
		tenants = append(tenants, strings.TrimPrefix(schema, schemaPrefix))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant schemas: %w", err)
	}
	return tenants, nil
}

// CreateTenantSchema creates a new schema for a tenant and runs all migrations
// against it. If migrationsDir is empty, migrations are skipped.
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, tenantID string, migrationsDir string) error {
	if !ValidTenantID(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %s", tenantID)
	}

	schema := SchemaName(tenantID)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema))
	if err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrationsDir != "" {
		migrator := NewMigrator(pool, migrationsDir)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}

	return nil
}
