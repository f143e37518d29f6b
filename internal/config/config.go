package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	APIConfig
	RefreshConfig
	StoreConfig
}

type EnvConfig interface {
	GetEnv() string
	GetLogLevel() string
	GetMetricsAddr() string
}

type APIConfig interface {
	GetAPIBase() string
	GetHTTPTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	API
	Refresh
	Store
}

// New loads envFiles (".env" when none are given) into the process
// environment without overriding variables already set, then reads every
// setting from the environment.
func New(envFiles ...string) Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return mainConfig{
		EnvVars: EnvVars{v: v},
		API:     API{v: v},
		Refresh: Refresh{v: v},
		Store:   Store{v: v},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(envVar, "DEV")
	v.SetDefault(logLevelVar, "info")
	v.SetDefault(apiBaseVar, "http://localhost:8080/api/v1")
	v.SetDefault(httpTimeoutVar, 30*time.Second)
	v.SetDefault(refreshEnabledVar, false)
	v.SetDefault(refreshEndpointVar, "/auth/refresh")
	v.SetDefault(refreshLeadVar, 60*time.Second)
	v.SetDefault(logoutSkewVar, 2*time.Second)
	v.SetDefault(sessionStoreVar, StoreFile)
}
