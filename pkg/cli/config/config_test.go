package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/compliflow/pkg/cli/config"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/repository/memory"
	"github.com/secmon-lab/compliflow/pkg/service/blob"
	"github.com/secmon-lab/compliflow/pkg/usecase"
	"golang.org/x/crypto/bcrypt"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()
	return path
}

func TestLoadWorkflowTemplate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name: "valid template",
			content: `
name = "CAPA"
states = ["Open", "Investigating", "Closed"]
initial_state = "Open"
final_states = ["Closed"]

[[transition]]
from = "Open"
to = "Investigating"

[[transition]]
from = "Investigating"
to = "Closed"
allowed_roles = ["Admin", "Manager"]
`,
		},
		{
			name: "initial state not declared",
			content: `
name = "Broken"
states = ["Open"]
initial_state = "Draft"
`,
			wantErr: model.ErrInvalidWorkflowDefinition,
		},
		{
			name: "unknown role",
			content: `
name = "Roles"
states = ["Open", "Closed"]
initial_state = "Open"

[[transition]]
from = "Open"
to = "Closed"
allowed_roles = ["Auditor"]
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name:    "not TOML",
			content: `name = `,
			wantErr: config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "workflow.toml", tt.content)
			wf, err := config.LoadWorkflowTemplate(path)
			if tt.wantErr != nil {
				gt.Error(t, err).Is(tt.wantErr)
				return
			}
			gt.NoError(t, err).Required()
			gt.Value(t, wf.Name).Equal("CAPA")
			gt.Bool(t, wf.IsDefault).True()
			gt.Array(t, wf.Transitions).Length(2)
			gt.Bool(t, wf.Transitions[0].Allows(types.RoleUser)).True()
			gt.Bool(t, wf.Transitions[1].Allows(types.RoleUser)).False()
		})
	}
}

func TestWorkflow_Configure(t *testing.T) {
	opts, err := config.NewWorkflowForTest("", time.Minute).Configure("memory")
	gt.NoError(t, err).Required()
	gt.Array(t, opts).Length(1)

	_, err = config.NewWorkflowForTest(filepath.Join(t.TempDir(), "missing.toml"), 0).Configure("memory")
	gt.Value(t, err).NotNil()
}

func TestWorkflow_CacheTTL(t *testing.T) {
	defaults := config.NewDefaultWorkflowForTest()
	gt.Value(t, defaults.CacheTTL("memory")).Equal(usecase.DefaultWorkflowCacheTTL)
	gt.Value(t, defaults.CacheTTL("firestore")).Equal(time.Duration(0))

	explicit := config.NewWorkflowForTest("", time.Minute)
	gt.Value(t, explicit.CacheTTL("firestore")).Equal(time.Minute)
}

func TestAuth_Configure(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"

	_, err := config.NewAuthForTest("short", time.Hour, int64(bcrypt.DefaultCost)).Configure()
	gt.Error(t, err).Is(config.ErrInvalidConfig)

	_, err = config.NewAuthForTest(key, time.Hour, 99).Configure()
	gt.Error(t, err).Is(config.ErrInvalidConfig)

	_, err = config.NewAuthForTest(key, 0, int64(bcrypt.DefaultCost)).Configure()
	gt.Error(t, err).Is(config.ErrInvalidConfig)

	opts, err := config.NewAuthForTest(key, time.Hour, int64(bcrypt.MinCost)).Configure()
	gt.NoError(t, err).Required()
	gt.Array(t, opts).Length(3)
}

func TestLogger_Configure(t *testing.T) {
	t.Run("json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		closer, err := config.NewLoggerForTest("debug", "json", path).Configure()
		gt.NoError(t, err).Required()
		closer()

		_, err = os.Stat(path)
		gt.NoError(t, err)
	})

	t.Run("console", func(t *testing.T) {
		closer, err := config.NewLoggerForTest("warn", "console", "stderr").Configure()
		gt.NoError(t, err).Required()
		closer()
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("loud", "json", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestRepository_Configure(t *testing.T) {
	repo, err := config.NewRepositoryForTest("memory", "").Configure(t.Context())
	gt.NoError(t, err).Required()
	_, isMemory := repo.(*memory.Memory)
	gt.Bool(t, isMemory).True()

	_, err = config.NewRepositoryForTest("firestore", "").Configure(t.Context())
	gt.Error(t, err).Is(config.ErrInvalidConfig)

	_, err = config.NewRepositoryForTest("postgres", "").Configure(t.Context())
	gt.Error(t, err).Is(config.ErrInvalidConfig)
}

func TestStorage_Configure(t *testing.T) {
	store, closer, err := config.NewStorageForTest("").Configure(t.Context())
	gt.NoError(t, err).Required()
	defer closer()
	_, isMemory := store.(*blob.Memory)
	gt.Bool(t, isMemory).True()
}
