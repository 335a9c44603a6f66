package fetcher

// DefaultConcurrency bounds in-flight requests when Config leaves it unset.
const DefaultConcurrency = 4

type Config struct {
	MaxConcurrency int
}
