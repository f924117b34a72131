package config

// DbSettings select and configure the session store backend.
type DbSettings struct {
	Type       string `mapstructure:"type" validate:"required,oneof=postgres spanner mongo"`
	DSN        string `mapstructure:"dsn"`        // postgres
	URI        string `mapstructure:"uri"`        // spanner database path or mongo connection string
	Database   string `mapstructure:"database"`   // mongo
	Collection string `mapstructure:"collection"` // mongo
}
