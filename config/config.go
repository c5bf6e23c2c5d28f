// Package config reads settings for the record service and the explorer session
// from the environment, after loading an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Server struct {
	HTTPAddr        string
	MongoURI        string
	MongoDB         string
	RedisAddr       string
	RedisDB         int
	AllowedOrigins  []string
	FeatureSeedFile string
	LogLevel        string
	LogFormat       string
}

type Explorer struct {
	ServiceURL   string
	HTTPTimeout  time.Duration
	HitTolerance float64
	CenterLat    float64
	CenterLon    float64
	Scale        float64
	Width        int
	Height       int
	NodeID       int64
	UserID       string
	LogLevel     string
	LogFormat    string
}

// Load reads .env if present. A missing file is not an error.
func Load(files ...string) {
	_ = godotenv.Load(files...)
}

func LoadServer() (Server, error) {
	cfg := Server{
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		MongoURI:        os.Getenv("MONGODB_URI"),
		MongoDB:         envOr("MONGODB_DB", "attractions_db"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		AllowedOrigins:  splitList(envOr("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		FeatureSeedFile: envOr("FEATURE_SEED_FILE", "./data/features.json"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
	}
	if cfg.MongoURI == "" {
		return cfg, fmt.Errorf("MONGODB_URI environment variable is not set")
	}
	if cfg.RedisAddr == "" {
		return cfg, fmt.Errorf("REDIS_ADDR environment variable is not set")
	}
	db, err := intOr("REDIS_DB", 0)
	if err != nil {
		return cfg, err
	}
	cfg.RedisDB = db
	return cfg, nil
}

func LoadExplorer() (Explorer, error) {
	cfg := Explorer{
		ServiceURL: strings.TrimRight(os.Getenv("RECORD_SERVICE_URL"), "/"),
		UserID:     envOr("USER_ID", "test_user"),
		LogLevel:   envOr("LOG_LEVEL", "info"),
		LogFormat:  envOr("LOG_FORMAT", "console"),
	}
	if cfg.ServiceURL == "" {
		return cfg, fmt.Errorf("RECORD_SERVICE_URL environment variable is not set")
	}

	var err error
	if cfg.HTTPTimeout, err = durationOr("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.HitTolerance, err = floatOr("HIT_TOLERANCE", 10); err != nil {
		return cfg, err
	}
	// Madison, WI
	if cfg.CenterLat, err = floatOr("VIEW_CENTER_LAT", 43.0761); err != nil {
		return cfg, err
	}
	if cfg.CenterLon, err = floatOr("VIEW_CENTER_LON", -89.4010); err != nil {
		return cfg, err
	}
	if cfg.Scale, err = floatOr("VIEW_SCALE", 15000); err != nil {
		return cfg, err
	}
	if cfg.Width, err = intOr("VIEW_WIDTH", 1080); err != nil {
		return cfg, err
	}
	if cfg.Height, err = intOr("VIEW_HEIGHT", 1920); err != nil {
		return cfg, err
	}
	node, err := intOr("NODE_ID", 1)
	if err != nil {
		return cfg, err
	}
	cfg.NodeID = int64(node)
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %v", key, err)
	}
	return n, nil
}

func floatOr(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %v", key, err)
	}
	return f, nil
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %v", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
