package testutils

import (
	"time"

	"github.com/nfrund/relay/internal/config"
)

// ConfigForTests returns a valid configuration backed by the in-memory store.
// Tests adjust individual fields on the returned value before use.
func ConfigForTests() *config.Config {
	return &config.Config{
		Port:             "0",
		StoreDriver:      config.DriverMemory,
		DBQueryTimeout:   time.Second,
		DBExecuteTimeout: time.Second,
		AllowedOrigins:   "*",
		MaxMessageSize:   1 << 20,
		SendBufferSize:   64,
	}
}
