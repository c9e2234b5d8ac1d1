package server

// Config contains HTTP server configuration. Values come from the config
// file and may be overridden from the environment.
type Config struct {
	Addr        string `env:"SPARKLE_ADDR"          envDefault:"127.0.0.1:8080"`
	MaxUploadMB int64  `env:"SPARKLE_MAX_UPLOAD_MB" envDefault:"50"`
}

// MaxUploadBytes returns the upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
