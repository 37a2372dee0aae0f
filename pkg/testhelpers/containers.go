// Package testhelpers starts shared containers for integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	tcch "github.com/testcontainers/testcontainers-go/modules/clickhouse"
)

// ClickHouseImage is the server image used by integration tests.
const ClickHouseImage = "clickhouse/clickhouse-server:24.8-alpine"

// ShopTables are the tables created by the seed script, in creation order.
var ShopTables = []string{"users", "orders", "products", "secrets"}

// seedStatements create a small shop schema: orders.user_id points at users,
// and secrets exists in the store but is never meant to be allow-listed.
var seedStatements = []string{
	`CREATE TABLE users (
		user_id UInt32 COMMENT 'Primary identifier',
		email String,
		signup_date Date
	) ENGINE = MergeTree ORDER BY user_id`,
	`CREATE TABLE orders (
		order_id UInt32,
		user_id UInt32,
		status Enum8('pending' = 1, 'shipped' = 2),
		note Nullable(String)
	) ENGINE = MergeTree ORDER BY order_id`,
	`CREATE TABLE products (
		product_id UInt32,
		name LowCardinality(String),
		price Decimal(10, 2)
	) ENGINE = MergeTree ORDER BY product_id`,
	`CREATE TABLE secrets (token String) ENGINE = MergeTree ORDER BY token`,
	`INSERT INTO users VALUES (1, 'a@example.com', '2024-01-02'), (2, 'b@example.com', '2024-02-03')`,
	`INSERT INTO orders VALUES (10, 1, 'pending', NULL), (11, 2, 'shipped', 'gift'), (12, 1, 'shipped', NULL)`,
	`INSERT INTO secrets VALUES ('do-not-leak')`,
}

// TestClickHouse is a running ClickHouse server seeded with the shop schema.
type TestClickHouse struct {
	Container *tcch.ClickHouseContainer
	Host      string
	Port      int
	Database  string
	User      string
	Password  string
}

var (
	sharedClickHouse     *TestClickHouse
	sharedClickHouseOnce sync.Once
	sharedClickHouseErr  error
)

// GetTestClickHouse returns a shared ClickHouse container for integration
// tests. The container is created once and reused across all tests in the
// run.
func GetTestClickHouse(t *testing.T) *TestClickHouse {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedClickHouseOnce.Do(func() {
		sharedClickHouse, sharedClickHouseErr = setupClickHouse(context.Background())
	})

	if sharedClickHouseErr != nil {
		t.Fatalf("Failed to setup test ClickHouse: %v", sharedClickHouseErr)
	}

	return sharedClickHouse
}

func setupClickHouse(ctx context.Context) (*TestClickHouse, error) {
	tc := &TestClickHouse{
		Database: "shop",
		User:     "default",
		Password: "test_password",
	}

	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		tc.Container, err = tcch.Run(ctx,
			ClickHouseImage,
			tcch.WithDatabase(tc.Database),
			tcch.WithUsername(tc.User),
			tcch.WithPassword(tc.Password),
		)
		if err == nil {
			break
		}
		if attempt == 3 || !isRetryable(err) {
			return nil, fmt.Errorf("failed to start ClickHouse container: %w", err)
		}
		time.Sleep(time.Duration(attempt) * 750 * time.Millisecond)
	}

	tc.Host, err = tc.Container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mapped, err := tc.Container.MappedPort(ctx, "9000/tcp")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	tc.Port, err = strconv.Atoi(mapped.Port())
	if err != nil {
		return nil, fmt.Errorf("invalid mapped port %q: %w", mapped.Port(), err)
	}

	if err := tc.seed(ctx); err != nil {
		return nil, err
	}

	return tc, nil
}

// Addr returns host:port of the native protocol endpoint.
func (tc *TestClickHouse) Addr() string {
	return fmt.Sprintf("%s:%d", tc.Host, tc.Port)
}

func (tc *TestClickHouse) seed(ctx context.Context) error {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{tc.Addr()},
		Auth: clickhouse.Auth{
			Database: tc.Database,
			Username: tc.User,
			Password: tc.Password,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to open ClickHouse: %w", err)
	}
	defer conn.Close()

	// The server may need a moment after the container reports ready.
	for attempt := 1; ; attempt++ {
		err = conn.Ping(ctx)
		if err == nil {
			break
		}
		if attempt == 5 || !isRetryable(err) {
			return fmt.Errorf("failed to ping ClickHouse: %w", err)
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}

	for _, stmt := range seedStatements {
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to seed ClickHouse: %w", err)
		}
	}
	return nil
}

func isRetryable(err error) bool {
	s := err.Error()
	for _, marker := range []string{"wait until ready", "mapped port", "timeout", "deadline exceeded", "handshake", "connection refused", "connection reset", "EOF"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
