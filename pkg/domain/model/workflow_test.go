package model_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
)

func validWorkflow() *model.Workflow {
	return &model.Workflow{
		Name:         "Review",
		States:       []string{"Open", "Review", "Done"},
		InitialState: "Open",
		FinalStates:  []string{"Done"},
		Transitions: []model.Transition{
			{From: "Open", To: "Review"},
			{From: "Review", To: "Done", AllowedRoles: []types.Role{types.RoleManager}},
		},
	}
}

func TestWorkflowValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *model.Workflow)
		field  string
	}{
		{
			name:   "valid definition",
			mutate: func(w *model.Workflow) {},
		},
		{
			name:   "missing name",
			mutate: func(w *model.Workflow) { w.Name = "" },
			field:  "name",
		},
		{
			name:   "no states",
			mutate: func(w *model.Workflow) { w.States = nil },
			field:  "states",
		},
		{
			name:   "duplicate state",
			mutate: func(w *model.Workflow) { w.States = append(w.States, "Open") },
			field:  "states",
		},
		{
			name:   "initial state not declared",
			mutate: func(w *model.Workflow) { w.InitialState = "X" },
			field:  "initialState",
		},
		{
			name:   "final state not declared",
			mutate: func(w *model.Workflow) { w.FinalStates = []string{"Done", "Archived"} },
			field:  "finalStates",
		},
		{
			name: "transition to undeclared state",
			mutate: func(w *model.Workflow) {
				w.Transitions = append(w.Transitions, model.Transition{From: "Open", To: "Ghost"})
			},
			field: "transitions",
		},
		{
			name: "duplicate transition pair",
			mutate: func(w *model.Workflow) {
				w.Transitions = append(w.Transitions, model.Transition{From: "Open", To: "Review"})
			},
			field: "transitions",
		},
		{
			name: "unknown role",
			mutate: func(w *model.Workflow) {
				w.Transitions[0].AllowedRoles = []types.Role{"Auditor"}
			},
			field: "transitions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := validWorkflow()
			tt.mutate(w)
			err := w.Validate()
			if tt.field == "" {
				gt.NoError(t, err)
				return
			}
			gt.Error(t, err)
			gt.B(t, errors.Is(err, model.ErrInvalidWorkflowDefinition)).True()
			gt.V(t, model.InvalidField(err)).Equal(tt.field)
		})
	}
}

func TestWorkflowFindTransition(t *testing.T) {
	w := validWorkflow()

	tr, ok := w.FindTransition("Review", "Done")
	gt.B(t, ok).True()
	gt.B(t, tr.Allows(types.RoleManager)).True()
	gt.B(t, tr.Allows(types.RoleUser)).False()

	tr, ok = w.FindTransition("Open", "Review")
	gt.B(t, ok).True()
	gt.B(t, tr.Allows(types.RoleUser)).True()

	_, ok = w.FindTransition("Open", "Done")
	gt.B(t, ok).False()
}

func TestWorkflowCopyIsDeep(t *testing.T) {
	w := validWorkflow()
	c := w.Copy()
	c.States[0] = "Changed"
	c.Transitions[1].AllowedRoles[0] = types.RoleAdmin

	gt.V(t, w.States[0]).Equal("Open")
	gt.V(t, w.Transitions[1].AllowedRoles[0]).Equal(types.RoleManager)
}

func TestDefaultWorkflowTemplate(t *testing.T) {
	w := model.DefaultWorkflowTemplate()
	gt.NoError(t, w.Validate())
	gt.B(t, w.IsActiveDefault()).True()
	gt.V(t, w.InitialState).Equal(model.BootstrapInitialState)
	gt.B(t, w.IsFinal("Closed")).True()
	gt.B(t, w.IsFinal("Rejected")).True()
	gt.B(t, w.IsFinal("Approved")).False()
}
