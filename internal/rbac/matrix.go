package rbac

// Row maps each action on a module to the role codes granted it. An action
// absent from the row is granted to nobody.
type Row map[Action][]RoleCode

// Matrix is the static ground truth of role grants, one row per module.
// Treated as read-only after construction; the Index copies everything it
// needs at build time.
type Matrix map[Module]Row

// DefaultMatrix returns the hand-authored permission matrix for the POS
// admin portal.
func DefaultMatrix() Matrix {
	all := []RoleCode{RoleAdmin, RoleFnb, RoleFnbManager, RoleHost}
	managers := []RoleCode{RoleAdmin, RoleFnbManager}
	adminOnly := []RoleCode{RoleAdmin}

	return Matrix{
		ModuleSales: Row{
			ActionCreate: all,
			ActionRead:   all,
			ActionUpdate: managers,
			ActionDelete: adminOnly,
			ActionPrint:  all,
			ActionExport: managers,
		},
		ModuleSalesApproval: Row{
			ActionRead:    managers,
			ActionApprove: managers,
		},
		ModuleInventory: Row{
			ActionCreate: adminOnly,
			ActionRead:   []RoleCode{RoleAdmin, RoleFnb, RoleFnbManager},
			ActionUpdate: managers,
			ActionDelete: adminOnly,
			ActionExport: managers,
		},
		ModulePurchase: Row{
			ActionCreate:  managers,
			ActionRead:    managers,
			ActionUpdate:  adminOnly,
			ActionDelete:  adminOnly,
			ActionApprove: adminOnly,
		},
		ModuleReports: Row{
			ActionRead:   managers,
			ActionPrint:  managers,
			ActionExport: managers,
		},
		ModuleUsers: Row{
			ActionCreate: adminOnly,
			ActionRead:   adminOnly,
			ActionUpdate: adminOnly,
			ActionDelete: adminOnly,
		},
		ModuleRoles: Row{
			ActionRead:   adminOnly,
			ActionUpdate: adminOnly,
		},
	}
}
