package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	GameID         string
	AnswerTimeout  time.Duration
	QuestionAPIURL string
	QuestionAPIKey string
}

func Load() *Config {
	// A missing .env is fine; real deployments set the environment.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		GameID:         getEnv("GAME_ID", "one-of-fifteen"),
		AnswerTimeout:  time.Duration(getEnvInt("ANSWER_TIMEOUT_SEC", 30)) * time.Second,
		QuestionAPIURL: getEnv("QUESTION_API_URL", ""),
		QuestionAPIKey: getEnv("QUESTION_API_KEY", ""),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}
