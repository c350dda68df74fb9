package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "products_sku_key"}
	wrapped := fmt.Errorf("insert product: %w", pgErr)

	require.True(t, IsUniqueViolation(wrapped, ""))
	require.True(t, IsUniqueViolation(wrapped, "products_sku_key"))
	require.False(t, IsUniqueViolation(wrapped, "products_code_key"))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	require.False(t, IsUniqueViolation(errors.New("boom"), ""))
	require.False(t, IsUniqueViolation(nil, ""))
}

func TestParseConfigAppliesPoolSettings(t *testing.T) {
	config, err := parseConfig("postgres://u:p@localhost:5432/pos?sslmode=disable", PoolConfig{MaxConns: 7, AppName: "catalogctl"})
	require.NoError(t, err)
	require.Equal(t, int32(7), config.MaxConns)
	require.Equal(t, "catalogctl", config.ConnConfig.RuntimeParams["application_name"])

	config, err = parseConfig("postgres://u:p@localhost:5432/pos?pool_max_conns=3", PoolConfig{})
	require.NoError(t, err)
	require.Equal(t, int32(3), config.MaxConns)

	_, err = parseConfig("://bad", PoolConfig{})
	require.Error(t, err)
}
