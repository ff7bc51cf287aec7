package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
)

// BootstrapInitialState is the initial status used when a tenant has no active default workflow
const BootstrapInitialState = "Draft"

// WorkflowID is a UUID-based identifier for Workflow
type WorkflowID string

// NewWorkflowID generates a new UUID v4 WorkflowID
func NewWorkflowID() WorkflowID {
	return WorkflowID(uuid.New().String())
}

// Transition is a directed edge of a workflow. An empty AllowedRoles means any role may take it.
type Transition struct {
	From         string       `json:"from"`
	To           string       `json:"to"`
	AllowedRoles []types.Role `json:"allowedRoles"`
}

// Allows reports whether role may take the transition
func (t *Transition) Allows(role types.Role) bool {
	if len(t.AllowedRoles) == 0 {
		return true
	}
	return slices.Contains(t.AllowedRoles, role)
}

// Workflow is a per-organization finite state machine governing issue status
type Workflow struct {
	ID             WorkflowID     `json:"id"`
	OrganizationID OrganizationID `json:"organizationId"`
	Name           string         `json:"name"`
	States         []string       `json:"states"`
	InitialState   string         `json:"initialState"`
	FinalStates    []string       `json:"finalStates"`
	Transitions    []Transition   `json:"transitions"`
	IsDefault      bool           `json:"isDefault"`
	IsActive       bool           `json:"isActive"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// IsActiveDefault reports whether the workflow governs its organization's issues
func (w *Workflow) IsActiveDefault() bool {
	return w.IsDefault && w.IsActive
}

// HasState reports whether state is declared by the workflow
func (w *Workflow) HasState(state string) bool {
	return slices.Contains(w.States, state)
}

// IsFinal reports whether state is one of the workflow's final states
func (w *Workflow) IsFinal(state string) bool {
	return slices.Contains(w.FinalStates, state)
}

// FindTransition returns the transition declared for the from → to pair
func (w *Workflow) FindTransition(from, to string) (*Transition, bool) {
	for i := range w.Transitions {
		if w.Transitions[i].From == from && w.Transitions[i].To == to {
			t := w.Transitions[i]
			return &t, true
		}
	}
	return nil, false
}

// Validate checks the structural invariants of the definition: initial and final states
// and every transition endpoint must be declared states, and allowed roles must be known.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return goerr.Wrap(ErrInvalidWorkflowDefinition, "workflow name is required",
			goerr.V(InvalidFieldKey, "name"))
	}
	if len(w.States) == 0 {
		return goerr.Wrap(ErrInvalidWorkflowDefinition, "at least one state is required",
			goerr.V(InvalidFieldKey, "states"))
	}

	seen := make(map[string]struct{}, len(w.States))
	for _, s := range w.States {
		if s == "" {
			return goerr.Wrap(ErrInvalidWorkflowDefinition, "state name must not be empty",
				goerr.V(InvalidFieldKey, "states"))
		}
		if _, dup := seen[s]; dup {
			return goerr.Wrap(ErrInvalidWorkflowDefinition, "duplicate state",
				goerr.V(InvalidFieldKey, "states"), goerr.V(StateKey, s))
		}
		seen[s] = struct{}{}
	}

	if !w.HasState(w.InitialState) {
		return goerr.Wrap(ErrInvalidWorkflowDefinition, "initialState must be one of the defined states",
			goerr.V(InvalidFieldKey, "initialState"), goerr.V(StateKey, w.InitialState))
	}

	for _, s := range w.FinalStates {
		if !w.HasState(s) {
			return goerr.Wrap(ErrInvalidWorkflowDefinition, "all finalStates must be in the defined states",
				goerr.V(InvalidFieldKey, "finalStates"), goerr.V(StateKey, s))
		}
	}

	pairs := make(map[[2]string]struct{}, len(w.Transitions))
	for _, t := range w.Transitions {
		if !w.HasState(t.From) || !w.HasState(t.To) {
			return goerr.Wrap(ErrInvalidWorkflowDefinition, "transition references undefined states",
				goerr.V(InvalidFieldKey, "transitions"), goerr.V(FromStateKey, t.From), goerr.V(ToStateKey, t.To))
		}
		key := [2]string{t.From, t.To}
		if _, dup := pairs[key]; dup {
			return goerr.Wrap(ErrInvalidWorkflowDefinition, "duplicate transition",
				goerr.V(InvalidFieldKey, "transitions"), goerr.V(FromStateKey, t.From), goerr.V(ToStateKey, t.To))
		}
		pairs[key] = struct{}{}

		for _, r := range t.AllowedRoles {
			if !r.IsValid() {
				return goerr.Wrap(ErrInvalidWorkflowDefinition, "transition allows an unknown role",
					goerr.V(InvalidFieldKey, "transitions"), goerr.V("role", r))
			}
		}
	}

	return nil
}

// Copy returns a deep copy of the workflow
func (w *Workflow) Copy() *Workflow {
	copied := *w
	copied.States = slices.Clone(w.States)
	copied.FinalStates = slices.Clone(w.FinalStates)
	if w.Transitions != nil {
		copied.Transitions = make([]Transition, len(w.Transitions))
		for i, t := range w.Transitions {
			copied.Transitions[i] = Transition{
				From:         t.From,
				To:           t.To,
				AllowedRoles: slices.Clone(t.AllowedRoles),
			}
		}
	}
	return &copied
}

// DefaultWorkflowTemplate returns the compliance review pipeline installed for newly
// registered organizations.
func DefaultWorkflowTemplate() *Workflow {
	all := []types.Role{types.RoleAdmin, types.RoleManager, types.RoleReviewer, types.RoleUser}
	reviewers := []types.Role{types.RoleAdmin, types.RoleManager, types.RoleReviewer}
	managers := []types.Role{types.RoleAdmin, types.RoleManager}

	return &Workflow{
		Name:         "Default Compliance Workflow",
		States:       []string{"Draft", "Submitted", "Under Review", "Approved", "Rejected", "Closed"},
		InitialState: "Draft",
		FinalStates:  []string{"Closed", "Rejected"},
		Transitions: []Transition{
			{From: "Draft", To: "Submitted", AllowedRoles: all},
			{From: "Submitted", To: "Under Review", AllowedRoles: reviewers},
			{From: "Under Review", To: "Approved", AllowedRoles: managers},
			{From: "Under Review", To: "Rejected", AllowedRoles: managers},
			{From: "Approved", To: "Closed", AllowedRoles: managers},
			{From: "Rejected", To: "Draft", AllowedRoles: []types.Role{types.RoleAdmin, types.RoleManager, types.RoleUser}},
		},
		IsDefault: true,
		IsActive:  true,
	}
}
