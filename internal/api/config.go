package api

// Config holds server configuration.
type Config struct {
	Port int

	// DataDir holds uploaded inputs, conversion outputs, and the
	// collection database.
	DataDir string

	// CacheDir enables the conversion result cache when set.
	CacheDir string

	RateLimitRequests int // requests per minute, 0 disables
	RateLimitBurst    int

	Auth           AuthConfig
	TLS            TLSConfig
	AllowedOrigins []string // CORS allowed origins, empty allows all
}

// TLSConfig holds TLS configuration.
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}
