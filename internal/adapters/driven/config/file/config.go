// Package file loads the target configuration from a JSON file, the
// convention the extraction tooling uses, with environment-level overrides
// for the API and dashboard URLs.
package file

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

// Defaults applied when neither config nor environment says otherwise.
const (
	DefaultBaseURL      = "https://api.acceptance.optiply.com/v1"
	DefaultDashboardURL = "https://dashboard.optiply.nl/api"

	// DefaultStartDate is the historical lower bound when none is configured.
	DefaultStartDate = "1970-01-01T00:00:00Z"
)

// Environment overrides, checked in order (the lowercase forms are legacy).
var (
	baseURLEnv      = []string{"OPTIPLY_BASE_URL", "optiply_base_url"}
	dashboardURLEnv = []string{"OPTIPLY_DASHBOARD_URL", "optiply_dashboard_url"}
)

// flexID decodes an identifier that may arrive as a JSON number or string.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*f = flexID(asString)
		return nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = flexID(asNumber.String())
	return nil
}

// Config is the target configuration surface.
type Config struct {
	// Required credentials for the password-grant exchange.
	Username     string `json:"username"`
	Password     string `json:"password"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`

	// AccountID and CouplingID scope API requests when set.
	AccountID  flexID `json:"account_id,omitempty"`
	CouplingID flexID `json:"coupling_id,omitempty"`

	// StartDate is the historical lower bound for the run.
	StartDate string `json:"start_date,omitempty"`

	// LedgerDB, when set, enables the SQLite run ledger at this path.
	LedgerDB string `json:"ledger_db,omitempty"`

	// Metadata is an opaque block passed through by the orchestration layer.
	Metadata map[string]any `json:"hotglue_metadata,omitempty"`

	// BaseURL and DashboardURL are resolved from config, environment and
	// defaults during Load.
	BaseURL      string `json:"base_url,omitempty"`
	DashboardURL string `json:"dashboard_url,omitempty"`
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults resolves URLs (environment wins over config, config over
// defaults) and fills the start date.
func (c *Config) applyDefaults() {
	if v := firstEnv(baseURLEnv); v != "" {
		c.BaseURL = v
	} else if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if v := firstEnv(dashboardURLEnv); v != "" {
		c.DashboardURL = v
	} else if c.DashboardURL == "" {
		c.DashboardURL = DefaultDashboardURL
	}
	if c.StartDate == "" {
		c.StartDate = DefaultStartDate
	}
}

// Validate checks the required credential fields.
func (c *Config) Validate() error {
	var missing []string
	for name, value := range map[string]string{
		"username":      c.Username,
		"password":      c.Password,
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", domain.ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// TokenURL is the full authentication endpoint.
func (c *Config) TokenURL() string {
	return strings.TrimRight(c.DashboardURL, "/") + "/auth/oauth/token"
}

// Account returns the account identifier as a string, empty if unset.
func (c *Config) Account() string { return string(c.AccountID) }

// Coupling returns the coupling identifier as a string, empty if unset.
func (c *Config) Coupling() string { return string(c.CouplingID) }

func firstEnv(names []string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
