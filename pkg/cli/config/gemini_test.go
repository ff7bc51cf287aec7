package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/compliflow/pkg/cli/config"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/service/summary"
)

func TestGemini_Configure(t *testing.T) {
	t.Run("falls back to built-in summaries when project ID is empty", func(t *testing.T) {
		cfg := config.NewGeminiForTest("", "us-central1")
		s, err := cfg.Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.Value(t, s).NotNil()

		result := s.Generate(t.Context(), interfaces.SummaryInput{
			Title:    "Leak",
			Category: "Safety",
			Priority: "Critical",
		})
		gt.Value(t, result.Model).Equal(summary.FallbackModel)
	})

	t.Run("returns flags", func(t *testing.T) {
		cfg := config.NewGeminiForTest("", "")
		gt.Array(t, cfg.Flags()).Length(3)
	})
}
