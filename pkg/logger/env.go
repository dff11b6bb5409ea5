package logger

import (
	"os"
	"strings"
)

type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

// DetectEnv reads APP_ENV, defaulting to dev.
func DetectEnv() Env {
	return ParseEnv(os.Getenv("APP_ENV"))
}

func ParseEnv(raw string) Env {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return EnvProd
	case "stage", "staging", "preprod", "pre-production":
		return EnvStage
	default:
		return EnvDev
	}
}
