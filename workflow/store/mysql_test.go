package store

import (
	"os"
	"testing"
)

// TestMySQLStore runs the shared conformance suite against a real
// MySQL instance. Skipped unless FOUNDRY_MYSQL_TEST_DSN is set, e.g.:
//
//	FOUNDRY_MYSQL_TEST_DSN="user:pass@tcp(localhost:3306)/foundry_test?parseTime=true" go test ./workflow/store/
func TestMySQLStore(t *testing.T) {
	dsn := os.Getenv("FOUNDRY_MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("FOUNDRY_MYSQL_TEST_DSN not set; skipping MySQL integration test")
	}

	st, err := NewMySQLStore[reviewState](dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore failed: %v", err)
	}
	defer st.Close()

	storeConformance(t, st)
}
