package env

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// placeholderMarker marks an unfilled key.txt template.
const placeholderMarker = "PASTE"

type EnvService struct {
	appEnv  string
	keyFile string
}

func NewEnvService() *EnvService {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Info: no .env file with secrets found (this is OK for CI/CD)")
	}

	envFile := fmt.Sprintf(".env.%s", appEnv)
	if err := godotenv.Overload(envFile); err != nil {
		log.Printf("Info: could not load %s: %v", envFile, err)
	}

	e := &EnvService{appEnv: appEnv}
	e.keyFile = e.GetWithDefault("GEMINI_KEY_FILE", "key.txt")
	return e
}

func (e *EnvService) AppEnv() string {
	return e.appEnv
}

func (e *EnvService) Get(key string) string {
	return os.Getenv(key)
}

func (e *EnvService) GetWithDefault(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GeminiKey returns GEMINI_API_KEY, falling back to the first non-placeholder
// content of the key file.
func (e *EnvService) GeminiKey() string {
	if key := strings.TrimSpace(e.Get("GEMINI_API_KEY")); key != "" {
		return key
	}
	if e.keyFile == "" {
		return ""
	}
	data, err := os.ReadFile(e.keyFile)
	if err != nil {
		return ""
	}
	key := strings.TrimSpace(string(data))
	if strings.Contains(key, placeholderMarker) {
		return ""
	}
	return key
}
