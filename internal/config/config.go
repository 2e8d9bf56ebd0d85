package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	GitHub  GitHubConfig  `mapstructure:"github"`
	S3      S3Config      `mapstructure:"s3"`
	Dev     DevConfig     `mapstructure:"dev"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// APIToken protects the REST surface when non-empty. This is a static
	// shared secret for a single-user deployment, not an account system.
	APIToken string `mapstructure:"api_token"`
}

// StorageConfig selects which file-store backend the server runs against.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "github", "s3" or "dev"
}

// GitHubConfig points at the repository that holds the data files.
type GitHubConfig struct {
	APIBase string `mapstructure:"api_base"`
	Owner   string `mapstructure:"owner"`
	Repo    string `mapstructure:"repo"`
	Branch  string `mapstructure:"branch"`
	Token   string `mapstructure:"token"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
}

// DevConfig configures the local-development data backend.
type DevConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	DataFile string `mapstructure:"data_file"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment variables override the file: github.token -> GITHUB_TOKEN.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("storage.backend", "github")
	viper.SetDefault("github.api_base", "https://api.github.com")
	viper.SetDefault("github.branch", "main")
	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("dev.base_url", "http://localhost:8080")
	viper.SetDefault("dev.data_file", "dev-data.json")

	err = viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// No config file; defaults plus env vars are enough.
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
