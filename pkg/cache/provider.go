package cache

import "fmt"

const (
	ProviderMemory = "memory"
	ProviderSQLite = "sqlite"
)

// New builds the store named by provider. dsn is only used by the sqlite provider.
func New(provider, dsn string, opts Options) (Store, error) {
	switch provider {
	case "", ProviderMemory:
		return NewMemoryStore(opts)
	case ProviderSQLite:
		return NewSQLiteStore(dsn, opts)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", provider)
	}
}
