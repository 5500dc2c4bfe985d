// Package authz is the static role table consulted before privileged operations.
//
// A Table maps a policy name to the set of role names allowed to exercise it.
// Roles come from verified access-token claims; the table never reads request
// state on its own.
package authz

import (
	"fmt"
	"sort"
)

// Policy names an authorization rule.
type Policy string

// Role names as stored in the roles catalogue.
const (
	RoleSystemAdmin    = "System Admin"
	RoleProjectManager = "Project Manager"
	RoleFrontendLeader = "Frontend Leader"
	RoleBackendLeader  = "Backend Leader"
	RoleQALeader       = "QA Leader"
	RoleDevOpsLeader   = "DevOps Leader"
	RoleUIUXLeader     = "UI/UX Design Leader"
	RoleHR             = "HR"
	RoleEmployee       = "Employee"
)

const (
	CanCreateAccounts Policy = "CanCreateAccount(s)"
	CanDeleteAccounts Policy = "CanDeleteAccount(s)"

	CanCreateEmployees Policy = "CanCreateEmployee(s)"
	CanDeleteEmployees Policy = "CanDeleteEmployee(s)"

	CanCreateTeams Policy = "CanCreateTeam(s)"
	CanUpdateTeams Policy = "CanUpdateTeam(s)"
	CanDeleteTeams Policy = "CanDeleteTeam(s)"

	CanCreateLeaders Policy = "CanCreateLeader(s)"
	CanDeleteLeaders Policy = "CanDeleteLeader(s)"

	CanCreateRoles Policy = "CanCreateRole(s)"
	CanUpdateRoles Policy = "CanUpdateRole(s)"
	CanDeleteRoles Policy = "CanDeleteRole(s)"

	CanCreateCategories Policy = "CanCreateCategory/Categories"
	CanUpdateCategories Policy = "CanUpdateCategory/Categories"
	CanDeleteCategories Policy = "CanDeleteCategory/Categories"

	CanCreateTaskStates Policy = "CanCreateTaskState(s)"
	CanUpdateTaskStates Policy = "CanUpdateTaskState(s)"
	CanDeleteTaskStates Policy = "CanDeleteTaskState(s)"

	CanCreateTasks Policy = "CanCreateTask(s)"
	CanUpdateTasks Policy = "CanUpdateTask(s)"
	CanDeleteTasks Policy = "CanDeleteTask(s)"

	CanGetTokens    Policy = "CanGetTokens"
	CanDeleteTokens Policy = "CanDeleteTokens"
)

// Table is an immutable policy -> allowed roles mapping.
type Table struct {
	rules map[Policy]map[string]struct{}
}

// New builds a Table. A policy with no roles is rejected: it would be
// indistinguishable from an unknown policy.
func New(rules map[Policy][]string) (Table, error) {
	t := Table{rules: make(map[Policy]map[string]struct{}, len(rules))}
	for p, roles := range rules {
		if p == "" {
			return Table{}, fmt.Errorf("authz: empty policy name")
		}
		if len(roles) == 0 {
			return Table{}, fmt.Errorf("authz: policy %q has no roles", p)
		}
		set := make(map[string]struct{}, len(roles))
		for _, r := range roles {
			set[r] = struct{}{}
		}
		t.rules[p] = set
	}
	return t, nil
}

// Default returns the application's role table.
func Default() Table {
	admin := []string{RoleSystemAdmin}
	adminHR := []string{RoleSystemAdmin, RoleHR}
	planners := []string{
		RoleSystemAdmin, RoleProjectManager, RoleFrontendLeader, RoleBackendLeader,
		RoleQALeader, RoleDevOpsLeader, RoleUIUXLeader,
	}

	t, err := New(map[Policy][]string{
		CanCreateAccounts: adminHR,
		CanDeleteAccounts: admin,

		CanCreateEmployees: adminHR,
		CanDeleteEmployees: admin,

		CanCreateTeams: admin,
		CanUpdateTeams: admin,
		CanDeleteTeams: admin,

		CanCreateLeaders: adminHR,
		CanDeleteLeaders: adminHR,

		CanCreateRoles: admin,
		CanUpdateRoles: admin,
		CanDeleteRoles: admin,

		CanCreateCategories: planners,
		CanUpdateCategories: planners,
		CanDeleteCategories: planners,

		CanCreateTaskStates: planners,
		CanUpdateTaskStates: planners,
		CanDeleteTaskStates: planners,

		CanCreateTasks: planners,
		CanUpdateTasks: planners,
		CanDeleteTasks: planners,

		CanGetTokens:    admin,
		CanDeleteTokens: admin,
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Allows reports whether role may exercise policy. Unknown policies deny.
func (t Table) Allows(p Policy, role string) bool {
	set, ok := t.rules[p]
	if !ok {
		return false
	}
	_, ok = set[role]
	return ok
}

// Roles returns the sorted role names allowed by p.
func (t Table) Roles(p Policy) []string {
	set := t.rules[p]
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Policies returns every policy name in sorted order.
func (t Table) Policies() []Policy {
	out := make([]Policy, 0, len(t.rules))
	for p := range t.rules {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
