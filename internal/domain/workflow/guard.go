package workflow

import "slices"

// Actor is the authenticated caller performing an action
type Actor struct {
	ID          string   `json:"id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// HasRole reports whether the actor holds role
func (a Actor) HasRole(role string) bool {
	return role != "" && slices.Contains(a.Roles, role)
}

// HasPermission reports whether the actor holds permission
func (a Actor) HasPermission(permission string) bool {
	return permission != "" && slices.Contains(a.Permissions, permission)
}

// CanAct reports whether the actor may approve, reject or disburse at the stage
func CanAct(actor Actor, stage Stage) bool {
	if stage.RequiredRole != "" && actor.HasRole(stage.RequiredRole) {
		return true
	}
	return stage.RequiredPermission != "" && actor.HasPermission(stage.RequiredPermission)
}
