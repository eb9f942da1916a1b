package config

import (
    "os"
    "strconv"
    "time"
)

// RateLimitConfig controls the fixed-window request limiter.  Every client IP
// gets at most Ceiling requests per Window; counters live in Redis and expire
// with the window.  When Enabled is false or Redis is unavailable the limiter
// becomes a pass-through.
type RateLimitConfig struct {
    Enabled bool
    Window  time.Duration
    Ceiling int
    Prefix  string
    Debug   bool
}

// LoadRateLimitConfig reads the RATE_LIMIT_* environment variables and applies
// defaults: a 15 minute window with a ceiling of 100 requests per client IP.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled: envBool("RATE_LIMIT_ENABLED", true),
        Window:  envDur("RATE_LIMIT_WINDOW", 15*time.Minute),
        Ceiling: envInt("RATE_LIMIT_CEILING", 100),
        Prefix:  envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:   envBool("RATE_LIMIT_DEBUG", false),
    }
    if cfg.Window <= 0 { cfg.Window = 15 * time.Minute }
    if cfg.Ceiling < 1 { cfg.Ceiling = 1 }
    return cfg
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    switch v {
    case "1","true","TRUE","True","yes","YES","on","ON": return true
    case "0","false","FALSE","False","no","NO","off","OFF": return false
    }
    return d
}
func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
