package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord        DiscordConfig        `yaml:"discord"`
	Database       DatabaseConfig       `yaml:"database"`
	Server         ServerConfig         `yaml:"server"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	Auction        AuctionConfig        `yaml:"auction"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	GuildID string `yaml:"guild_id"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Driver   string `yaml:"driver"` // "sqlx" or "ent"
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// Role is one entry in the session's role taxonomy.
type Role struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SquadSize bounds how many players a team may own.
type SquadSize struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// AuctionConfig holds per-session auction settings. It is immutable for
// the lifetime of a session.
type AuctionConfig struct {
	Sport            string    `yaml:"sport"`
	Roles            []Role    `yaml:"roles"`
	TotalBudget      int64     `yaml:"total_budget"`
	BidIncrement     int64     `yaml:"bid_increment"`
	CountdownSeconds int       `yaml:"countdown_seconds"`
	SquadSize        SquadSize `yaml:"squad_size"`
	OverseasLimit    int       `yaml:"overseas_limit"`
}

// HasRole reports whether id exists in the configured role taxonomy.
func (a AuctionConfig) HasRole(id string) bool {
	for _, r := range a.Roles {
		if r.ID == id {
			return true
		}
	}
	return false
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// SportDefaults returns the preset auction settings for a sport. The
// presets mirror the common league formats; "custom" is a permissive
// single-role template.
func SportDefaults(sport string) (AuctionConfig, bool) {
	switch sport {
	case "cricket":
		return AuctionConfig{
			Sport:            "cricket",
			SquadSize:        SquadSize{Min: 18, Max: 25},
			TotalBudget:      100_000_000,
			BidIncrement:     500_000,
			CountdownSeconds: 30,
			OverseasLimit:    8,
			Roles: []Role{
				{ID: "bat", Name: "Batsman"},
				{ID: "bowl", Name: "Bowler"},
				{ID: "ar", Name: "All-Rounder"},
				{ID: "wk", Name: "Wicket-Keeper"},
			},
		}, true
	case "kabaddi":
		return AuctionConfig{
			Sport:            "kabaddi",
			SquadSize:        SquadSize{Min: 15, Max: 20},
			TotalBudget:      50_000_000,
			BidIncrement:     500_000,
			CountdownSeconds: 30,
			Roles: []Role{
				{ID: "raider", Name: "Raider"},
				{ID: "defender", Name: "Defender"},
				{ID: "ar", Name: "All-Rounder"},
			},
		}, true
	case "football":
		return AuctionConfig{
			Sport:            "football",
			SquadSize:        SquadSize{Min: 20, Max: 30},
			TotalBudget:      80_000_000,
			BidIncrement:     500_000,
			CountdownSeconds: 30,
			Roles: []Role{
				{ID: "fwd", Name: "Forward"},
				{ID: "mid", Name: "Midfielder"},
				{ID: "def", Name: "Defender"},
				{ID: "gk", Name: "Goalkeeper"},
			},
		}, true
	case "esports":
		return AuctionConfig{
			Sport:            "esports",
			SquadSize:        SquadSize{Min: 5, Max: 8},
			TotalBudget:      1_000_000,
			BidIncrement:     10_000,
			CountdownSeconds: 30,
			Roles: []Role{
				{ID: "igl", Name: "IGL"},
				{ID: "fragger", Name: "Entry Fragger"},
				{ID: "support", Name: "Support"},
				{ID: "sniper", Name: "Sniper"},
			},
		}, true
	case "custom":
		return AuctionConfig{
			Sport:            "custom",
			SquadSize:        SquadSize{Min: 1, Max: 100},
			TotalBudget:      1_000_000,
			BidIncrement:     10_000,
			CountdownSeconds: 30,
			Roles:            []Role{{ID: "player", Name: "Player"}},
		}, true
	}
	return AuctionConfig{}, false
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	defaults, _ := SportDefaults("cricket")
	cfg := &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Driver:  "sqlx",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctionbot",
			ServiceVersion: "0.1.0",
		},
		Auction: defaults,
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auctionbot-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlx", "ent":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"sqlx\" or \"ent\"", c.Database.Driver)
	}

	a := c.Auction
	if len(a.Roles) == 0 {
		return fmt.Errorf("auction.roles must not be empty")
	}
	seen := make(map[string]struct{}, len(a.Roles))
	for _, r := range a.Roles {
		if r.ID == "" {
			return fmt.Errorf("auction role with empty id")
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("duplicate auction role id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	if a.TotalBudget <= 0 {
		return fmt.Errorf("auction.total_budget must be positive, got %d", a.TotalBudget)
	}
	if a.BidIncrement <= 0 {
		return fmt.Errorf("auction.bid_increment must be positive, got %d", a.BidIncrement)
	}
	if a.CountdownSeconds <= 0 {
		return fmt.Errorf("auction.countdown_seconds must be positive, got %d", a.CountdownSeconds)
	}
	if a.SquadSize.Min < 0 || (a.SquadSize.Max > 0 && a.SquadSize.Max < a.SquadSize.Min) {
		return fmt.Errorf("auction.squad_size bounds invalid: min=%d max=%d", a.SquadSize.Min, a.SquadSize.Max)
	}
	return nil
}
