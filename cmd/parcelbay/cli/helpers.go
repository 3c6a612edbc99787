package cli

import (
	"os"

	"github.com/spf13/viper"

	"github.com/parcelbay/parcelbay/internal/store"
)

// resolveDataDir returns the data directory from the --data-dir flag,
// PARCELBAY_DATA_DIR env var, or ~/.parcelbay as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("PARCELBAY_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.parcelbay"
}

// openStore opens the persistence store. A store.dsn setting (postgres URL or
// data directory) wins; otherwise the resolved data directory gets a SQLite
// file.
func openStore() (*store.Store, error) {
	dsn := viper.GetString("store.dsn")
	if dsn == "" {
		dsn = resolveDataDir()
	}
	return store.Open(dsn)
}
