// Package rbac implements permission resolution and route guards for the
// admin API. A static matrix defines which roles may perform which
// module/action pairs; a derived index answers role lookups; a DB-backed
// resolver keeps per-session access snapshots in sync with role assignment.
package rbac

import "strings"

// RoleCode identifies a role grantable to a user.
type RoleCode string

// Known role codes.
const (
	RoleAdmin      RoleCode = "admin"
	RoleFnb        RoleCode = "fnb"
	RoleFnbManager RoleCode = "fnb_manager"
	RoleHost       RoleCode = "host"
)

// Module is a business area permissions are scoped to.
type Module string

// Permission modules.
const (
	ModuleSales         Module = "sales"
	ModuleSalesApproval Module = "sales_approval"
	ModuleInventory     Module = "inventory"
	ModulePurchase      Module = "purchase"
	ModuleReports       Module = "reports"
	ModuleUsers         Module = "users"
	ModuleRoles         Module = "roles"
)

// Action is a verb a role may be granted on a module.
type Action string

// Permission actions.
const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionPrint   Action = "print"
	ActionExport  Action = "export"
)

// Key uniquely identifies a grantable capability as "module:action".
type Key string

// PermissionKey builds the composite key for a module/action pair.
func PermissionKey(module Module, action Action) Key {
	return Key(string(module) + ":" + string(action))
}

// Split breaks a key into its module and action parts. ok is false when the
// key is not of the "module:action" form.
func (k Key) Split() (Module, Action, bool) {
	module, action, found := strings.Cut(string(k), ":")
	if !found || module == "" || action == "" {
		return "", "", false
	}
	return Module(module), Action(action), true
}
