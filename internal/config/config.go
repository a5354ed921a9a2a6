package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            int
	MasterKey       string // encrypts stored connection secrets, min 32 bytes
	PlatformDBPath  string
	QueryTimeout    time.Duration
	JWTSecret       string
	AccessTokenTTL  time.Duration
	LLMEnabled      bool
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	LogDir          string
	SampleRowLimit  int
	QueryLogDefault int // default page size for log listing
}

func Load() (*Config, error) {
	// Try loading .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	key := os.Getenv("TENANTQL_KEY")
	if len(key) < 32 {
		fmt.Println("TENANTQL_KEY not found or too short. Generating a new secure key...")
		newKey, err := generateRandomKey(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}
		if err := saveKeyToEnv(newKey); err != nil {
			fmt.Printf("Warning: failed to save generated key to .env: %v\n", err)
		} else {
			fmt.Println("New TENANTQL_KEY saved to .env file.")
		}
		key = newKey
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		// The master key doubles as the signing secret unless overridden,
		// mirroring the single SECRET_KEY most deployments run with.
		jwtSecret = key
	}

	cfg := &Config{
		Port:            envInt("PORT", 8080),
		MasterKey:       key,
		PlatformDBPath:  envStr("PLATFORM_DB_PATH", "tenantql.db"),
		QueryTimeout:    time.Duration(envInt("QUERY_TIMEOUT_SECONDS", 30)) * time.Second,
		JWTSecret:       jwtSecret,
		AccessTokenTTL:  time.Duration(envInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     envStr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   envStr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		LogDir:          envStr("LOG_DIR", "logs"),
		SampleRowLimit:  envInt("SAMPLE_ROW_LIMIT", 5),
		QueryLogDefault: envInt("QUERY_LOG_LIMIT", 50),
	}

	// LLM features are a capability decided once at startup.
	cfg.LLMEnabled = cfg.OpenAIAPIKey != "" && !envBool("LLM_DISABLED", false)

	return cfg, nil
}

func envStr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(name string, def bool) bool {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func generateRandomKey(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// Base64 so the key is printable and survives .env round trips
	return base64.StdEncoding.EncodeToString(b), nil
}

func saveKeyToEnv(key string) error {
	filename := ".env"
	content, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return os.WriteFile(filename, []byte(fmt.Sprintf("TENANTQL_KEY=%s\nPORT=8080\n", key)), 0644)
	} else if err != nil {
		return err
	}

	lines := strings.Split(string(content), "\n")
	found := false
	newLines := []string{}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "TENANTQL_KEY=") {
			newLines = append(newLines, fmt.Sprintf("TENANTQL_KEY=%s", key))
			found = true
		} else if trimmed != "" {
			newLines = append(newLines, trimmed)
		}
	}
	if !found {
		newLines = append(newLines, fmt.Sprintf("TENANTQL_KEY=%s", key))
	}
	return os.WriteFile(filename, []byte(strings.Join(newLines, "\n")+"\n"), 0644)
}
