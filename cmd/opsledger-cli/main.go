package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opsledger/opsledger/client"
)

// Build-time variables set via ldflags.
var (
	version   = "0.1.0"
	commit    = ""
	buildDate = ""
)

var (
	apiClient  *client.Client
	flagURL    string
	flagTenant string
	flagFmt    string
)

const defaultURL = "http://localhost:3040"

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("opsledger version %s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return fmt.Sprintf("opsledger version %s-dev", version)
}

type configFile struct {
	// Flat format
	URL      string `yaml:"url"`
	TenantID string `yaml:"tenant_id"`
	// Profile format
	Profiles      map[string]configProfile `yaml:"profiles"`
	ActiveProfile string                   `yaml:"active_profile"`
}

type configProfile struct {
	URL      string `yaml:"url"`
	TenantID string `yaml:"tenant_id"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "opsledger",
		Short:   "opsledger CLI — offline-first operational records with a verifiable audit trail",
		Version: versionString(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveConfig()
			apiClient = client.New(flagURL, flagTenant)
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "opsledger server URL (env: OPSLEDGER_URL)")
	rootCmd.PersistentFlags().StringVar(&flagTenant, "tenant", "", "Tenant ID (env: OPSLEDGER_TENANT)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")

	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newEntityCmd())
	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newSyncCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfig() {
	// Flag takes precedence, then env, then config file.
	if flagURL == defaultURL {
		if v := os.Getenv("OPSLEDGER_URL"); v != "" {
			flagURL = v
		}
	}
	if flagTenant == "" {
		flagTenant = os.Getenv("OPSLEDGER_TENANT")
	}

	// Try config file for any remaining defaults.
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	cfgPath := filepath.Join(home, ".opsledger", "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return
	}
	resolvedURL := cfg.URL
	resolvedTenant := cfg.TenantID
	if cfg.Profiles != nil {
		profileName := cfg.ActiveProfile
		if profileName == "" {
			profileName = "default"
		}
		if p, ok := cfg.Profiles[profileName]; ok {
			if p.URL != "" {
				resolvedURL = p.URL
			}
			if p.TenantID != "" {
				resolvedTenant = p.TenantID
			}
		}
	}
	if flagURL == defaultURL && resolvedURL != "" {
		flagURL = resolvedURL
	}
	if flagTenant == "" && resolvedTenant != "" {
		flagTenant = resolvedTenant
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
