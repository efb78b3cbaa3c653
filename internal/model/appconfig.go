package model

// AppConfig holds application-wide preferences and the default build
// options applied to instances that do not set them explicitly.
type AppConfig struct {
	// Default build options
	DefaultMethod int    `json:"default_method"`
	DefaultSort   bool   `json:"default_sort"`
	DefaultBinary bool   `json:"default_binary"`
	DefaultVType  string `json:"default_vtype"`

	// Service settings
	ServerAddr string `json:"server_addr"`
	DBPath     string `json:"db_path"`
	RedisAddr  string `json:"redis_addr"` // empty = no graph cache
	CacheTTL   int    `json:"cache_ttl"`  // seconds, 0 = no expiry

	// Application preferences
	LogLevel        string   `json:"log_level"` // "debug", "info", "warn", "error"
	RecentInstances []string `json:"recent_instances"`
}

// DefaultAppConfig returns an AppConfig populated with sensible defaults.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		DefaultMethod:   MethodCompressed,
		DefaultSort:     true,
		DefaultBinary:   false,
		DefaultVType:    string(VTypeInteger),
		ServerAddr:      ":8080",
		DBPath:          "arcflow.db",
		CacheTTL:        3600,
		LogLevel:        "info",
		RecentInstances: []string{},
	}
}

// ApplyToInstance copies the default build options into inst.
// Used by readers for instances without a trailer.
func (c AppConfig) ApplyToInstance(inst *Instance) {
	inst.Method = c.DefaultMethod
	inst.Sort = c.DefaultSort
	inst.Binary = c.DefaultBinary
	if len(c.DefaultVType) == 1 {
		inst.VType = c.DefaultVType[0]
	}
}

// AddRecent records path as the most recently used instance, keeping at
// most max entries.
func (c *AppConfig) AddRecent(path string, max int) {
	out := []string{path}
	for _, p := range c.RecentInstances {
		if p != path {
			out = append(out, p)
		}
	}
	if len(out) > max {
		out = out[:max]
	}
	c.RecentInstances = out
}
