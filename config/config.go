package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const (
	DefaultHome     = "~/.hacgov"
	homeEnvVar      = "HACGOV_HOME"
	envPrefix       = "HACGOV"
	configFileName  = "config.toml"
	indexerFileName = "indexer.db"
)

// HacAppConfig is the [app] section of config.toml.
type HacAppConfig struct {
	Home      string `mapstructure:"-"`
	DBBackend string `mapstructure:"db_backend"`

	IndexerDB    string        `mapstructure:"indexer_db"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ServiceAddr  string        `mapstructure:"service_addr"`

	// ForwardURL receives executed actions that target other systems.
	// Empty disables forwarding.
	ForwardURL     string        `mapstructure:"forward_url"`
	ForwardRetries uint          `mapstructure:"forward_retries"`
	ForwardBackoff time.Duration `mapstructure:"forward_backoff"`
}

func DefaultHACAppConfig(home string) *HacAppConfig {
	return &HacAppConfig{
		Home:           home,
		DBBackend:      "goleveldb",
		IndexerDB:      indexerFileName,
		PollInterval:   2 * time.Second,
		ServiceAddr:    "127.0.0.1:8686",
		ForwardRetries: 5,
		ForwardBackoff: time.Second,
	}
}

func (c *HacAppConfig) DataDir() string {
	return filepath.Join(c.Home, "data")
}

func (c *HacAppConfig) IndexerPath() string {
	if filepath.IsAbs(c.IndexerDB) {
		return c.IndexerDB
	}
	return filepath.Join(c.Home, c.IndexerDB)
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *HacAppConfig `mapstructure:"app"`
}

// ResolveHome picks the home directory from the flag, then HACGOV_HOME,
// then DefaultHome, expanding a leading ~.
func ResolveHome(home string) (string, error) {
	if home == "" {
		home = os.Getenv(homeEnvVar)
	}
	if home == "" {
		home = DefaultHome
	}
	return homedir.Expand(home)
}

func DefaultConfig(home string) *Config {
	cfg := &Config{
		DefaultHACCometConfig(),
		DefaultHACAppConfig(home),
	}
	cfg.SetRoot(home)
	return cfg
}

func ConfigFile(home string) string {
	return filepath.Join(home, "config", configFileName)
}

// LoadConfig reads home/config/config.toml over the defaults. Environment
// variables such as HACGOV_APP_FORWARD_URL override file values.
func LoadConfig(home string) (*Config, error) {
	cfg := DefaultConfig(home)
	vp := viper.New()
	vp.SetConfigFile(ConfigFile(home))
	vp.SetConfigType("toml")
	vp.AutomaticEnv()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := vp.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.SetRoot(home)
	cfg.App.Home = home
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	return cfg, nil
}

func InitializeNodeValidatorFiles(config *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := config.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := config.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

func DefaultHACCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 3
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	return cometConfig
}
