package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application's configuration values.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":4000"`  // Address for the HTTP router
	GrpcAddr string `env:"GRPC_ADDR" envDefault:":50051"` // Address for the GRPC server

	UDPEnabled             bool   `env:"UDP_ENABLED" envDefault:"false"`
	UDPHost                string `env:"UDP_HOST" envDefault:"0.0.0.0"`
	UdpPort                int    `env:"UDP_PORT" envDefault:"4001"`                   // Port for the UDP socket
	UDPBufferSize          int    `env:"UDP_BUFFER_SIZE" envDefault:"2048"`            // Size of the buffer for incoming UDP packets (in bytes)
	UDPHeartbeatExpiration int    `env:"UDP_HEARTBEAT_EXPIRATION" envDefault:"3000"` // Expiration time for UDP heartbeat (in milliseconds)

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"` // sqlite or bolt
	StorePath   string `env:"STORE_PATH" envDefault:"./data/state.db"`

	SessionDuration      time.Duration `env:"SESSION_DURATION" envDefault:"30s"`
	SessionGrace         time.Duration `env:"SESSION_GRACE" envDefault:"500ms"`
	RequireActiveSession bool          `env:"REQUIRE_ACTIVE_SESSION" envDefault:"true"`

	BroadcastChannel string `env:"BROADCAST_CHANNEL" envDefault:"joystick-channel"`
	CatalogPath      string `env:"CATALOG_PATH"` // Optional YAML catalog overriding the embedded one

	GPIOEnabled   bool   `env:"GPIO_ENABLED" envDefault:"false"`
	GPIOChip      string `env:"GPIO_CHIP" envDefault:"gpiochip0"`
	AudioEnabled  bool   `env:"AUDIO_ENABLED" envDefault:"false"`
	SoundsDir     string `env:"SOUNDS_DIR" envDefault:"./sounds"`
	PulseServer   string `env:"PULSE_SERVER" envDefault:"unix:/run/user/1000/pulse/native"`
	XDGRuntimeDir string `env:"XDG_RUNTIME_DIR" envDefault:"/run/user/1000"`
}

// Envs holds the application's configuration loaded from environment variables.
var Envs = initConfig()

// initConfig initializes and returns the application configuration.
// It loads environment variables from a .env file.
func initConfig() Config {
	// Load .env file if available
	if err := godotenv.Load(); err != nil {
		log.Printf("[APP] [INFO] .env file not found or could not be loaded: %v", err)
	}

	cfg, err := Parse()
	if err != nil {
		log.Fatalf("%s[APP]%s %s[FATAL]%s %v", ColorGreen, ColorReset, ColorRed, ColorReset, err)
	}
	return cfg
}

// Parse reads the configuration from the current environment.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.StoreDriver != "sqlite" && cfg.StoreDriver != "bolt" {
		return Config{}, &InvalidValueError{Key: "STORE_DRIVER", Value: cfg.StoreDriver}
	}
	if cfg.SessionDuration <= 0 {
		return Config{}, &InvalidValueError{Key: "SESSION_DURATION", Value: cfg.SessionDuration.String()}
	}
	return cfg, nil
}

// InvalidValueError reports an environment variable holding an unusable value.
type InvalidValueError struct {
	Key   string
	Value string
}

func (e *InvalidValueError) Error() string {
	return "environment variable " + e.Key + " has invalid value " + `"` + e.Value + `"`
}
