package domain

import (
	"testing"

	apperrors "github.com/veritest/veritest/internal/platform/errors"
)

func TestAuthorizeManagerBypass(t *testing.T) {
	t.Parallel()

	manager := User{ID: "mgr-1", Role: RoleTestManager}
	cases := []struct {
		kind       EntityKind
		transition Transition
	}{
		{KindScenario, TransitionApprove},
		{KindPlan, TransitionCancel},
		{KindCycle, TransitionStop},
		{KindExecution, TransitionRecordResult},
		{KindDefect, TransitionResolve},
	}
	for _, tc := range cases {
		if err := Authorize(manager, tc.kind, tc.transition, "someone-else"); err != nil {
			t.Errorf("manager denied %s %s: %v", tc.kind, tc.transition, err)
		}
	}
}

func TestAuthorizeRoleWhitelist(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		actor      User
		kind       EntityKind
		transition Transition
		ownerID    string
		allowed    bool
	}{
		{"tester submits own scenario", User{ID: "u1", Role: RoleTester}, KindScenario, TransitionSubmitForReview, "u1", true},
		{"tester submits another's scenario", User{ID: "u1", Role: RoleTester}, KindScenario, TransitionSubmitForReview, "u2", false},
		{"tester approves scenario", User{ID: "u1", Role: RoleTester}, KindScenario, TransitionApprove, "u1", false},
		{"viewer submits scenario", User{ID: "u1", Role: RoleViewer}, KindScenario, TransitionSubmitForReview, "u1", false},
		{"tester submits own plan", User{ID: "u1", Role: RoleTester}, KindPlan, TransitionSubmit, "u1", true},
		{"tester approves plan", User{ID: "u1", Role: RoleTester}, KindPlan, TransitionApprove, "u1", false},
		{"tester starts cycle", User{ID: "u1", Role: RoleTester}, KindCycle, TransitionStart, "u1", false},
		{"tester begins own execution", User{ID: "u1", Role: RoleTester}, KindExecution, TransitionBegin, "u1", true},
		{"tester begins another's execution", User{ID: "u1", Role: RoleTester}, KindExecution, TransitionBegin, "u2", false},
		{"troubleshooter records execution result", User{ID: "u1", Role: RoleTroubleshooter}, KindExecution, TransitionRecordResult, "u1", false},
		{"tester assigns defect", User{ID: "u1", Role: RoleTester}, KindDefect, TransitionAssign, "", false},
		{"troubleshooter resolves own defect", User{ID: "u1", Role: RoleTroubleshooter}, KindDefect, TransitionResolve, "u1", true},
		{"troubleshooter resolves another's defect", User{ID: "u1", Role: RoleTroubleshooter}, KindDefect, TransitionResolve, "u2", false},
		{"tester resolves defect", User{ID: "u1", Role: RoleTester}, KindDefect, TransitionResolve, "u1", false},
		{"reporter confirms retest", User{ID: "u1", Role: RoleTester}, KindDefect, TransitionConfirmRetest, "u1", true},
		{"non-reporter rejects retest", User{ID: "u1", Role: RoleTester}, KindDefect, TransitionRejectRetest, "u2", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := Authorize(tc.actor, tc.kind, tc.transition, tc.ownerID)
			if tc.allowed && err != nil {
				t.Fatalf("Authorize denied: %v", err)
			}
			if !tc.allowed {
				if !apperrors.Is(err, apperrors.CodeTransitionDenied) {
					t.Fatalf("err = %v, want transition denied", err)
				}
			}
		})
	}
}

func TestAuthorizeDenyMetadata(t *testing.T) {
	t.Parallel()

	err := Authorize(User{ID: "u1", Role: RoleViewer}, KindDefect, TransitionResolve, "u1")
	var appErr *apperrors.Error
	if !asAppError(err, &appErr) {
		t.Fatalf("err = %T, want *apperrors.Error", err)
	}
	if appErr.Metadata["Entity"] != "defect" || appErr.Metadata["Transition"] != "resolve" {
		t.Errorf("metadata = %v, want entity and transition recorded", appErr.Metadata)
	}
}

func asAppError(err error, target **apperrors.Error) bool {
	e, ok := err.(*apperrors.Error)
	if ok {
		*target = e
	}
	return ok
}
