package domain

import (
	"fmt"

	apperrors "github.com/veritest/veritest/internal/platform/errors"
)

type guardRule struct {
	roles []Role
	// ownerOnly restricts the rule to the actor named by the entity's
	// ownership field (owner, creator, assigned tester, assignee or
	// reporter depending on the transition).
	ownerOnly bool
}

// guardRules whitelists which roles may request each transition. Test
// managers bypass the table entirely; transitions absent from the table
// are manager only.
var guardRules = map[EntityKind]map[Transition]guardRule{
	KindScenario: {
		TransitionCreate:          {roles: []Role{RoleTester}},
		TransitionSubmitForReview: {roles: []Role{RoleTester}, ownerOnly: true},
		TransitionEdit:            {roles: []Role{RoleTester}, ownerOnly: true},
	},
	KindPlan: {
		TransitionCreate: {roles: []Role{RoleTester}},
		TransitionSubmit: {roles: []Role{RoleTester}, ownerOnly: true},
		TransitionEdit:   {roles: []Role{RoleTester}, ownerOnly: true},
	},
	KindExecution: {
		TransitionBegin:        {roles: []Role{RoleTester}, ownerOnly: true},
		TransitionRecordResult: {roles: []Role{RoleTester}, ownerOnly: true},
		TransitionRetest:       {roles: []Role{RoleTester}, ownerOnly: true},
	},
	KindDefect: {
		TransitionCreate:        {roles: []Role{RoleTester, RoleTroubleshooter}},
		TransitionResolve:       {roles: []Role{RoleTroubleshooter}, ownerOnly: true},
		TransitionStartRetest:   {roles: []Role{RoleTester}, ownerOnly: true},
		TransitionConfirmRetest: {roles: []Role{RoleTester}, ownerOnly: true},
		TransitionRejectRetest:  {roles: []Role{RoleTester}, ownerOnly: true},
	},
}

// Authorize decides whether the actor may request the given transition.
// Test managers are always allowed. Everyone else must hold a
// whitelisted role, and when the rule is owner scoped, must also be the
// user named by ownerID. A deny returns a 403-coded error and the caller
// must not mutate state or dispatch notifications.
func Authorize(actor User, kind EntityKind, transition Transition, ownerID string) error {
	if actor.Role == RoleTestManager {
		return nil
	}

	rule, ok := guardRules[kind][transition]
	if !ok || !roleIn(actor.Role, rule.roles) {
		return transitionDenied(actor, kind, transition, "role not permitted")
	}
	if rule.ownerOnly && actor.ID != ownerID {
		return transitionDenied(actor, kind, transition, "actor does not own this record")
	}
	return nil
}

func roleIn(role Role, set []Role) bool {
	for _, candidate := range set {
		if role == candidate {
			return true
		}
	}
	return false
}

func transitionDenied(actor User, kind EntityKind, transition Transition, reason string) *apperrors.Error {
	return apperrors.WithMetadata(
		apperrors.CodeTransitionDenied,
		fmt.Sprintf("%s %s denied for role %s: %s", kind, transition, RoleLabel(actor.Role), reason),
		map[string]string{
			"Entity":     string(kind),
			"Transition": string(transition),
			"Role":       RoleLabel(actor.Role),
			"UserID":     actor.ID,
		},
	)
}
