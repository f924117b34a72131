package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Settings is the full configuration surface for both binaries. The agent
// reads Geofence/Queue/Connectivity/Monitor/Remote; the session server reads
// Server/Database/Broker/Sweeper. Configuration is loaded once at startup
// and treated as immutable for the process lifetime.
type Settings struct {
	Geofence      GeofenceSettings     `mapstructure:"geofence"`
	Queue         QueueSettings        `mapstructure:"queue"`
	Connectivity  ConnectivitySettings `mapstructure:"connectivity"`
	Monitor       MonitorSettings      `mapstructure:"monitor"`
	Remote        RemoteSettings       `mapstructure:"remote"`
	Server        ServerSettings       `mapstructure:"server"`
	Database      DbSettings           `mapstructure:"database"`
	Broker        BrokerSettings       `mapstructure:"broker"`
	Sweeper       SweeperSettings      `mapstructure:"sweeper"`
	Observability Observability        `mapstructure:"observability"`
}

// GeofenceSettings define the monitored zone and the session ceiling.
type GeofenceSettings struct {
	CenterLatitude  float64 `mapstructure:"center_latitude"`
	CenterLongitude float64 `mapstructure:"center_longitude"`
	RadiusMeters    float64 `mapstructure:"radius_meters" validate:"gt=0"`
	MaxSessionHours float64 `mapstructure:"max_session_hours" validate:"gt=0"`
	ExitThreshold   int     `mapstructure:"exit_threshold" validate:"gt=0"`
}

// MaxSession returns the session ceiling as a duration.
func (g GeofenceSettings) MaxSession() time.Duration {
	return time.Duration(g.MaxSessionHours * float64(time.Hour))
}

// QueueSettings bound the offline queue and its retry curve.
type QueueSettings struct {
	MaxSize     int           `mapstructure:"max_size" validate:"gt=0"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"gt=0"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
	StorageDir  string        `mapstructure:"storage_dir" validate:"required"`
}

type ConnectivitySettings struct {
	ProbeURL      string        `mapstructure:"probe_url" validate:"required,url"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

type MonitorSettings struct {
	WatchdogInterval time.Duration `mapstructure:"watchdog_interval"`
}

// RemoteSettings point the agent at the session server. MemberID is
// required by the agent binary, which checks it explicitly at startup.
type RemoteSettings struct {
	BaseURL  string `mapstructure:"base_url" validate:"required,url"`
	MemberID string `mapstructure:"member_id"`
}

type ServerSettings struct {
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`
}

type SweeperSettings struct {
	Interval time.Duration `mapstructure:"interval"`
}

func (c *Settings) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// Load reads checkin.yaml from the given path (or the current directory)
// and applies CHECKIN_-prefixed environment overrides on top of hard-coded
// defaults.
func Load(filePath string) (*Settings, error) {
	cfg := &Settings{}

	// viper keeps global state; start each load from a clean slate
	viper.Reset()
	setDefaults()

	viper.SetConfigType("yaml")
	viper.SetConfigName("checkin")
	viper.AddConfigPath(filePath)
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("No config file found or read error: %v (will rely on defaults and env)", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Settings) LoadFromEnv() error {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("CHECKIN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // env vars like CHECKIN_GEOFENCE_RADIUS_METERS

	// Bind environment variables explicitly to ensure they map correctly
	viper.BindEnv("geofence.center_latitude")
	viper.BindEnv("geofence.center_longitude")
	viper.BindEnv("geofence.radius_meters")
	viper.BindEnv("geofence.max_session_hours")
	viper.BindEnv("geofence.exit_threshold")
	viper.BindEnv("queue.max_size")
	viper.BindEnv("queue.max_retries")
	viper.BindEnv("queue.backoff_base")
	viper.BindEnv("queue.backoff_cap")
	viper.BindEnv("queue.storage_dir")
	viper.BindEnv("connectivity.probe_url")
	viper.BindEnv("connectivity.probe_interval")
	viper.BindEnv("monitor.watchdog_interval")
	viper.BindEnv("remote.base_url")
	viper.BindEnv("remote.member_id")
	viper.BindEnv("server.listen_addr")
	viper.BindEnv("database.type")
	viper.BindEnv("database.dsn")
	viper.BindEnv("database.uri")
	viper.BindEnv("database.database")
	viper.BindEnv("database.collection")
	viper.BindEnv("broker.type")
	viper.BindEnv("broker.url")
	viper.BindEnv("broker.exchange")
	viper.BindEnv("broker.projectID")
	viper.BindEnv("sweeper.interval")
	viper.BindEnv("observability.service_name")
	viper.BindEnv("observability.tracing_url")

	if err := viper.Unmarshal(&c); err != nil {
		return err
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("geofence.center_latitude", 59.3293)
	viper.SetDefault("geofence.center_longitude", 18.0686)
	viper.SetDefault("geofence.radius_meters", 150.0)
	viper.SetDefault("geofence.max_session_hours", 12.0)
	viper.SetDefault("geofence.exit_threshold", 3)
	viper.SetDefault("queue.max_size", 25)
	viper.SetDefault("queue.max_retries", 3)
	viper.SetDefault("queue.backoff_base", time.Second)
	viper.SetDefault("queue.backoff_cap", 30*time.Second)
	viper.SetDefault("queue.storage_dir", defaultStorageDir())
	viper.SetDefault("connectivity.probe_url", "https://clients3.google.com/generate_204")
	viper.SetDefault("connectivity.probe_interval", 15*time.Second)
	viper.SetDefault("monitor.watchdog_interval", 5*time.Minute)
	viper.SetDefault("remote.base_url", "http://localhost:8080")
	viper.SetDefault("remote.member_id", "")
	viper.SetDefault("server.listen_addr", ":8080")
	viper.SetDefault("database.type", "postgres")
	viper.SetDefault("broker.type", "none")
	viper.SetDefault("sweeper.interval", 15*time.Minute)
	viper.SetDefault("observability.service_name", "checkin-sync")
}

func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./checkin-queue"
	}
	return filepath.Join(home, ".checkin-sync")
}
