// Package access answers which actor roles may perform which dispatch operations.
// Pure functions only; identity itself is resolved by adapters.
package access

import (
	"fmt"
	"strings"
)

// Role classifies an actor.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleOperations    Role = "operations"
	RoleBranchManager Role = "branch_manager"
	RoleBranchStaff   Role = "branch_staff"
	RoleViewer        Role = "viewer"
)

var knownRoles = map[Role]bool{
	RoleAdmin:         true,
	RoleOperations:    true,
	RoleBranchManager: true,
	RoleBranchStaff:   true,
	RoleViewer:        true,
}

// ParseRole normalizes a raw role string. Unknown roles are returned as-is with ok=false.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, knownRoles[r]
}

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	return knownRoles[r]
}

// IsOperationsClass reports whether the role belongs to central operations.
func (r Role) IsOperationsClass() bool {
	return r == RoleAdmin || r == RoleOperations
}

// Actor is the resolved identity of a caller.
type Actor struct {
	ID       string
	Name     string
	Role     Role
	Branches []string // Branch slugs a branch-scoped role may act on
}

// Label returns the display string recorded as provenance.
func (a Actor) Label() string {
	switch {
	case a.Name != "" && a.ID != "" && a.Name != a.ID:
		return fmt.Sprintf("%s (%s)", a.Name, a.ID)
	case a.Name != "":
		return a.Name
	}
	return a.ID
}

// GuardResult represents the outcome of a permission check.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

func deny(a Actor, action string) GuardResult {
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("role %q may not %s", a.Role, action),
	}
}

// CanRead allows every known role to read manifests and the archive.
func CanRead(a Actor) GuardResult {
	if !a.Role.IsValid() {
		return deny(a, "read dispatches")
	}
	return GuardResult{Allowed: true}
}

// CanManageManifests gates manifest creation and deletion.
func CanManageManifests(a Actor) GuardResult {
	if !a.Role.IsOperationsClass() {
		return deny(a, "create or delete dispatch manifests")
	}
	return GuardResult{Allowed: true}
}

// CanAddLateItems gates the late-item injector.
func CanAddLateItems(a Actor) GuardResult {
	if !a.Role.IsOperationsClass() {
		return deny(a, "add late items")
	}
	return GuardResult{Allowed: true}
}

// CanResolveIssues gates returning an issue sub-dispatch into the flow.
func CanResolveIssues(a Actor) GuardResult {
	if !a.Role.IsOperationsClass() {
		return deny(a, "resolve dispatch issues")
	}
	return GuardResult{Allowed: true}
}

// CanUpdateBranch gates packing/receiving updates on one sub-dispatch.
// Rules:
// - admin and operations may update any branch
// - branch_manager and branch_staff only their own branches
// - viewer never
func CanUpdateBranch(a Actor, branchSlug string) GuardResult {
	if a.Role.IsOperationsClass() {
		return GuardResult{Allowed: true}
	}
	switch a.Role {
	case RoleBranchManager, RoleBranchStaff:
		for _, b := range a.Branches {
			if b == branchSlug {
				return GuardResult{Allowed: true}
			}
		}
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("%s is not assigned to branch %s", a.Label(), branchSlug),
		}
	}
	return deny(a, "update branch dispatches")
}
