package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envVar             = "ENV"
	logLevelVar        = "LOG_LEVEL"
	metricsAddrVar     = "REPAIRSHOP_METRICS_ADDR"
	apiBaseVar         = "REPAIRSHOP_API_BASE"
	httpTimeoutVar     = "REPAIRSHOP_HTTP_TIMEOUT"
	refreshEnabledVar  = "REPAIRSHOP_AUTH_REFRESH"
	refreshEndpointVar = "REPAIRSHOP_AUTH_REFRESH_ENDPOINT"
	refreshLeadVar     = "REPAIRSHOP_AUTH_REFRESH_LEAD"
	logoutSkewVar      = "REPAIRSHOP_AUTH_LOGOUT_SKEW"
	sessionStoreVar    = "REPAIRSHOP_SESSION_STORE"
	sessionDirVar      = "REPAIRSHOP_SESSION_DIR"
	redisAddrVar       = "REPAIRSHOP_REDIS_ADDR"
	redisPasswordVar   = "REPAIRSHOP_REDIS_PASSWORD"
)

// Session store kinds.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type RefreshConfig interface {
	GetRefreshEnabled() bool
	GetRefreshEndpoint() string
	GetRefreshLead() time.Duration
	GetLogoutSkew() time.Duration
}

type StoreConfig interface {
	GetSessionStore() string
	GetSessionDir() string
	GetRedisAddr() string
	GetRedisPassword() string
}

type EnvVars struct{ v *viper.Viper }

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetEnv() string {
	return e.v.GetString(envVar)
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.v.GetString(logLevelVar))
}

// GetMetricsAddr is empty when metrics should not be served.
func (e EnvVars) GetMetricsAddr() string {
	return e.v.GetString(metricsAddrVar)
}

type API struct{ v *viper.Viper }

var _ APIConfig = API{}

func (a API) GetAPIBase() string {
	return strings.TrimRight(a.v.GetString(apiBaseVar), "/")
}

func (a API) GetHTTPTimeout() time.Duration {
	return a.v.GetDuration(httpTimeoutVar)
}

type Refresh struct{ v *viper.Viper }

var _ RefreshConfig = Refresh{}

func (r Refresh) GetRefreshEnabled() bool {
	return r.v.GetBool(refreshEnabledVar)
}

func (r Refresh) GetRefreshEndpoint() string {
	return r.v.GetString(refreshEndpointVar)
}

func (r Refresh) GetRefreshLead() time.Duration {
	return r.v.GetDuration(refreshLeadVar)
}

func (r Refresh) GetLogoutSkew() time.Duration {
	return r.v.GetDuration(logoutSkewVar)
}

type Store struct{ v *viper.Viper }

var _ StoreConfig = Store{}

func (s Store) GetSessionStore() string {
	return strings.ToLower(s.v.GetString(sessionStoreVar))
}

// GetSessionDir defaults to ~/.repairshop, falling back to ./.repairshop
// when the home directory is unknown.
func (s Store) GetSessionDir() string {
	if dir := s.v.GetString(sessionDirVar); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".repairshop"
	}
	return filepath.Join(home, ".repairshop")
}

func (s Store) GetRedisAddr() string {
	return s.v.GetString(redisAddrVar)
}

func (s Store) GetRedisPassword() string {
	return s.v.GetString(redisPasswordVar)
}
