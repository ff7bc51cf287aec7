package config

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Workflow configures the workflow engine: the template installed for new
// organizations and the lookup cache
type Workflow struct {
	templatePath string
	cacheTTL     time.Duration
	cacheTTLSet  bool
}

func (x *Workflow) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "workflow-template",
			Usage:       "TOML file with the default workflow of newly registered organizations",
			Category:    "Workflow",
			Destination: &x.templatePath,
			Sources:     cli.EnvVars("COMPLIFLOW_WORKFLOW_TEMPLATE"),
		},
		&cli.DurationFlag{
			Name:        "workflow-cache-ttl",
			Usage:       "How long a resolved workflow is cached (0 disables the cache; disabled by default on firestore, where other instances cannot invalidate it)",
			Category:    "Workflow",
			Value:       usecase.DefaultWorkflowCacheTTL,
			Destination: &x.cacheTTL,
			Sources:     cli.EnvVars("COMPLIFLOW_WORKFLOW_CACHE_TTL"),
			Action: func(ctx context.Context, c *cli.Command, v time.Duration) error {
				x.cacheTTLSet = true
				return nil
			},
		},
	}
}

func (x Workflow) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("template", x.templatePath),
		slog.Duration("cache-ttl", x.cacheTTL),
	)
}

type transitionTemplate struct {
	From         string   `toml:"from"`
	To           string   `toml:"to"`
	AllowedRoles []string `toml:"allowed_roles"`
}

type workflowTemplate struct {
	Name         string               `toml:"name"`
	States       []string             `toml:"states"`
	InitialState string               `toml:"initial_state"`
	FinalStates  []string             `toml:"final_states"`
	Transitions  []transitionTemplate `toml:"transition"`
}

// LoadWorkflowTemplate reads and validates a workflow definition from a TOML file
func LoadWorkflowTemplate(path string) (*model.Workflow, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read workflow template", goerr.V("path", path))
	}

	var tmpl workflowTemplate
	if err := toml.Unmarshal(data, &tmpl); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse workflow template",
			goerr.V("path", path), goerr.V("reason", err.Error()))
	}

	wf := &model.Workflow{
		Name:         tmpl.Name,
		States:       tmpl.States,
		InitialState: tmpl.InitialState,
		FinalStates:  tmpl.FinalStates,
		IsDefault:    true,
		IsActive:     true,
	}
	for _, t := range tmpl.Transitions {
		roles := make([]types.Role, 0, len(t.AllowedRoles))
		for _, r := range t.AllowedRoles {
			role, err := types.ParseRole(r)
			if err != nil {
				return nil, goerr.Wrap(ErrInvalidConfig, "unknown role in workflow template",
					goerr.V("path", path), goerr.V("role", r))
			}
			roles = append(roles, role)
		}
		wf.Transitions = append(wf.Transitions, model.Transition{From: t.From, To: t.To, AllowedRoles: roles})
	}

	if err := wf.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid workflow template", goerr.V("path", path))
	}
	return wf, nil
}

// CacheTTL returns the workflow cache TTL for a repository backend. Cache
// invalidation only reaches the local process, so a shared firestore backend
// gets no cache unless a TTL was set explicitly.
func (x *Workflow) CacheTTL(backend string) time.Duration {
	if backend == "firestore" && !x.cacheTTLSet {
		return 0
	}
	return x.cacheTTL
}

// Configure returns the use case options of the workflow engine for a repository backend
func (x *Workflow) Configure(backend string) ([]usecase.Option, error) {
	opts := []usecase.Option{usecase.WithWorkflowCacheTTL(x.CacheTTL(backend))}
	if x.templatePath == "" {
		return opts, nil
	}

	wf, err := LoadWorkflowTemplate(x.templatePath)
	if err != nil {
		return nil, err
	}
	return append(opts, usecase.WithWorkflowTemplate(wf)), nil
}
