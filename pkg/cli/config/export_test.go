package config

import (
	"time"

	"github.com/secmon-lab/compliflow/pkg/usecase"
)

func NewSlackForTest(botToken, channelID, baseURL string) *Slack {
	return &Slack{botToken: botToken, channelID: channelID, baseURL: baseURL}
}

func NewGeminiForTest(projectID, location string) *Gemini {
	return &Gemini{projectID: projectID, location: location}
}

func NewAuthForTest(key string, ttl time.Duration, cost int64) *Auth {
	return &Auth{signingKey: key, tokenTTL: ttl, bcryptCost: cost}
}

func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

func NewWorkflowForTest(templatePath string, cacheTTL time.Duration) *Workflow {
	return &Workflow{templatePath: templatePath, cacheTTL: cacheTTL, cacheTTLSet: true}
}

func NewDefaultWorkflowForTest() *Workflow {
	return &Workflow{cacheTTL: usecase.DefaultWorkflowCacheTTL}
}

func NewRepositoryForTest(backend, projectID string) *Repository {
	return &Repository{backend: backend, projectID: projectID}
}

func NewStorageForTest(bucket string) *Storage {
	return &Storage{bucket: bucket}
}
