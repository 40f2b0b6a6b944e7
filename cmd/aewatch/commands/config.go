package commands

import (
	"aewatch/internal/archive"
	"aewatch/internal/components/chrono"
	"aewatch/internal/components/telemetry"
	"aewatch/internal/empire"
	"aewatch/internal/session"
	"aewatch/internal/skins/bluenova"
	"fmt"
	"time"
)

type Config struct {
	Server   string `json:"server"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// Skins are the names of the extraction plugins to register, defaults to every known plugin.
	Skins []string `json:"skins"`
	// Pages are requested on every refresh in addition to the account, board and messages pages.
	Pages             []string `json:"pages"`
	RequestsPerSecond float64  `json:"requests_per_second"`
	TimeoutSeconds    int      `json:"timeout_seconds"`
	CloudflareBypass  bool     `json:"cloudflare_bypass"`
	// Timezone the server displays dates in (ex. "America/New_York"), defaults to UTC.
	Timezone string `json:"timezone"`
	// HttpDump is a directory every request/response pair is written to, for debugging.
	HttpDump string              `json:"http_dump"`
	Archive  archive.Config      `json:"archive"`
	Watch    string              `json:"watch"`
	Log      telemetry.LogConfig `json:"log"`
}

const defaultWatchSpec = "@every 10m"

func registry(tel telemetry.API) empire.Registry {
	return empire.NewRegistry(
		bluenova.New(tel),
	)
}

func (cfg Config) validate() error {
	if cfg.Server == "" {
		return fmt.Errorf("'server' is required")
	}
	if cfg.Email == "" || cfg.Password == "" {
		return fmt.Errorf("'email' and 'password' are required")
	}
	return nil
}

func (cfg Config) newClient(timeApi chrono.TimeAPI, tel telemetry.API) (*empire.Client, error) {
	err := cfg.validate()
	if err != nil {
		return nil, err
	}

	plugins := registry(tel)
	names := cfg.Skins
	if len(names) == 0 {
		names = plugins.Names()
	}
	enabled, err := plugins.Lookup(names...)
	if err != nil {
		return nil, err
	}

	opts := session.Options{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		CloudflareBypass:  cfg.CloudflareBypass,
	}
	if cfg.HttpDump != "" {
		dump, err := telemetry.NewFilesystemOutput(cfg.HttpDump)
		if err != nil {
			return nil, err
		}
		opts.HttpDump = dump
	}

	return empire.NewClient(
		session.Credentials{
			Server:   cfg.Server,
			Email:    cfg.Email,
			Password: cfg.Password,
		},
		opts,
		enabled,
		timeApi,
		tel,
	)
}
