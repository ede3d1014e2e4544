// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Clusters accepted in config and on the command line.
const (
	ClusterMainnet  = "mainnet-beta"
	ClusterTestnet  = "testnet"
	ClusterDevnet   = "devnet"
	ClusterLocalnet = "localnet"
)

// Default public RPC endpoints per cluster.
var defaultRPCURLs = map[string]string{
	ClusterMainnet:  "https://api.mainnet-beta.solana.com",
	ClusterTestnet:  "https://api.testnet.solana.com",
	ClusterDevnet:   "https://api.devnet.solana.com",
	ClusterLocalnet: "http://127.0.0.1:8899",
}

// Config holds apcold configuration settings
type Config struct {
	Cluster string `yaml:"cluster" description:"Cluster (mainnet-beta, testnet, devnet, localnet)" default:"devnet"`

	// RPC endpoint overrides (empty = public endpoint for the cluster)
	MainnetRPCURL  string `yaml:"mainnet_rpc_url" description:"Mainnet-beta JSON-RPC URL"`
	TestnetRPCURL  string `yaml:"testnet_rpc_url" description:"Testnet JSON-RPC URL"`
	DevnetRPCURL   string `yaml:"devnet_rpc_url" description:"Devnet JSON-RPC URL"`
	LocalnetRPCURL string `yaml:"localnet_rpc_url" description:"Local validator JSON-RPC URL"`

	Commitment     string        `yaml:"commitment" description:"Commitment for reads and confirmation (processed, confirmed, finalized)" default:"confirmed"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout" description:"How long to wait for confirmation" default:"60s"`
	PollInterval   time.Duration `yaml:"poll_interval" description:"Minimum spacing between status polls" default:"2s"`
	MessageVersion string        `yaml:"message_version" description:"Message format for constructed messages (legacy, v0)" default:"legacy"`

	UnsignedFile  string `yaml:"unsigned_file" description:"Unsigned message envelope (relative to data dir)" default:"unsigned-tx.json"`
	SignatureFile string `yaml:"signature_file" description:"Detached signature envelope (relative to data dir)" default:"signature.json"`
	NonceAccount  string `yaml:"nonce_account" description:"Default durable nonce account address"`

	// Offline signer settings
	KeyFile           string            `yaml:"key_file" description:"Signing keypair file (relative to data dir)" default:"id.json"`
	PassphraseCommand []string          `yaml:"passphrase_command_argv" description:"Helper that prints the key file passphrase (argv[0] relative to data dir)"`
	PassphraseEnv     map[string]string `yaml:"passphrase_command_env" description:"Environment passed to the passphrase helper"`
}

// DefaultConfig returns the default configuration for runtime use.
func DefaultConfig() Config {
	return Config{
		Cluster:        ClusterDevnet,
		Commitment:     "confirmed",
		ConfirmTimeout: 60 * time.Second,
		PollInterval:   2 * time.Second,
		MessageVersion: "legacy",
		UnsignedFile:   "unsigned-tx.json",
		SignatureFile:  "signature.json",
		KeyFile:        "id.json",
	}
}

// DataDirEnvVar overrides the default data directory.
const DataDirEnvVar = "APCOLD_DATA"

// GetDataDir returns the data directory.
// Resolution order: -d flag > APCOLD_DATA env var > ~/.apcold
func GetDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envDir := os.Getenv(DataDirEnvVar); envDir != "" {
		return envDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".apcold")
}

// GetConfigPath returns the path to the config file in the data directory.
// Returns empty string if dataDir is empty.
func GetConfigPath(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "config.yaml")
}

// LoadConfig loads config.yaml from the data directory, resolving relative
// file paths against it. A missing file yields the defaults.
func LoadConfig(dataDir string) (Config, error) {
	config, err := LoadConfigFromPath(GetConfigPath(dataDir))
	if err != nil {
		return config, err
	}

	config.UnsignedFile = ResolvePath(config.UnsignedFile, dataDir)
	config.SignatureFile = ResolvePath(config.SignatureFile, dataDir)
	config.KeyFile = ResolvePath(config.KeyFile, dataDir)
	if len(config.PassphraseCommand) > 0 {
		config.PassphraseCommand[0] = ResolvePath(config.PassphraseCommand[0], dataDir)
	}
	return config, nil
}

// LoadConfigFromPath loads configuration from the specified path.
// If path is empty or the file doesn't exist, returns default config.
func LoadConfigFromPath(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay config file values
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks enumerated fields and durations.
func (c *Config) Validate() error {
	if _, ok := defaultRPCURLs[c.Cluster]; !ok {
		return fmt.Errorf("invalid cluster '%s' in config (must be mainnet-beta, testnet, devnet or localnet)", c.Cluster)
	}
	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("invalid commitment '%s' in config (must be processed, confirmed or finalized)", c.Commitment)
	}
	switch c.MessageVersion {
	case "legacy", "v0":
	default:
		return fmt.Errorf("invalid message_version '%s' in config (must be legacy or v0)", c.MessageVersion)
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm_timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	return nil
}

// RPCURL returns the endpoint for cluster: the configured override, else
// the public default.
func (c *Config) RPCURL(cluster string) (string, error) {
	var override string
	switch cluster {
	case ClusterMainnet:
		override = c.MainnetRPCURL
	case ClusterTestnet:
		override = c.TestnetRPCURL
	case ClusterDevnet:
		override = c.DevnetRPCURL
	case ClusterLocalnet:
		override = c.LocalnetRPCURL
	default:
		return "", fmt.Errorf("invalid cluster: %s", cluster)
	}
	if override != "" {
		return override, nil
	}
	return defaultRPCURLs[cluster], nil
}

// ResolvePath resolves a path relative to baseDir if not absolute.
// Returns path unchanged if empty or already absolute.
func ResolvePath(path, baseDir string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// DisplayConfig prints the effective configuration
func DisplayConfig(w io.Writer, dataDir string) {
	config, err := LoadConfig(dataDir)

	_, _ = fmt.Fprintln(w, "Current Configuration:")
	_, _ = fmt.Fprintln(w, "=====================")
	_, _ = fmt.Fprintf(w, "Data dir:        %s\n", dataDir)
	_, _ = fmt.Fprintf(w, "Config file:     %s\n", GetConfigPath(dataDir))
	if err != nil {
		_, _ = fmt.Fprintf(w, "Error:           %v\n", err)
		return
	}
	url, _ := config.RPCURL(config.Cluster)
	_, _ = fmt.Fprintf(w, "Cluster:         %s\n", config.Cluster)
	_, _ = fmt.Fprintf(w, "RPC URL:         %s\n", url)
	_, _ = fmt.Fprintf(w, "Commitment:      %s\n", config.Commitment)
	_, _ = fmt.Fprintf(w, "Confirm timeout: %s\n", config.ConfirmTimeout)
	_, _ = fmt.Fprintf(w, "Message version: %s\n", config.MessageVersion)
	_, _ = fmt.Fprintf(w, "Unsigned file:   %s\n", config.UnsignedFile)
	_, _ = fmt.Fprintf(w, "Signature file:  %s\n", config.SignatureFile)
	if config.NonceAccount != "" {
		_, _ = fmt.Fprintf(w, "Nonce account:   %s\n", config.NonceAccount)
	} else {
		_, _ = fmt.Fprintf(w, "Nonce account:   (none, recent blockhash mode)\n")
	}
	_, _ = fmt.Fprintf(w, "Key file:        %s\n", config.KeyFile)
}
