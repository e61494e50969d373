package testutil

import (
	"fmt"
	"os"
	"testing"
	"time"
)

const DefaultHealthCheckTimeout = 30 * time.Second

type TestEnv struct {
	ServerURL  string
	ServerPort string
}

// NewTestEnv reads the integration environment. Tests calling Setup skip
// unless TEST_SERVER_URL (or TEST_SERVER_PORT) points at a running service.
func NewTestEnv() *TestEnv {
	serverPort := getEnv("TEST_SERVER_PORT", "8080")
	serverURL := os.Getenv("TEST_SERVER_URL")
	if serverURL == "" && os.Getenv("TEST_SERVER_PORT") != "" {
		serverURL = fmt.Sprintf("http://localhost:%s", serverPort)
	}

	return &TestEnv{
		ServerURL:  serverURL,
		ServerPort: serverPort,
	}
}

func (e *TestEnv) Setup(t *testing.T) *Client {
	t.Helper()

	if e.ServerURL == "" {
		t.Skip("TEST_SERVER_URL not set; skipping integration tests")
	}

	client := NewClient(e.ServerURL)
	client.WaitForHealthy(t, DefaultHealthCheckTimeout)
	return client
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
