package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	defaultSocket        = "/var/run/invokerd/invoker.grpc"
	defaultAdminAddr     = ":8082"
	defaultDiagTailBytes = 8 << 10
)

type AppConfig struct {
	DebugMode bool
	// Compiler is empty or "internal..." for the in-process compiler,
	// anything else forces external processes.
	Compiler      string
	Socket        string
	AdminAddr     string
	DiagTailBytes int
}

// LoadEnvFile loads key=value pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func NewSystemConfig() *AppConfig {
	return &AppConfig{
		DebugMode:     os.Getenv("INVOKER_DEBUG") == "true",
		Compiler:      os.Getenv("INVOKER_COMPILER"),
		Socket:        getEnv("INVOKER_SOCKET", defaultSocket),
		AdminAddr:     getEnv("INVOKER_ADMIN_ADDR", defaultAdminAddr),
		DiagTailBytes: getIntEnv("INVOKER_DIAG_TAIL_BYTES", defaultDiagTailBytes),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
