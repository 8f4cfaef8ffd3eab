package rbac

import "github.com/tradegate/tradegate/pkg/identity"

// Permission names follow "resource.action". These are the only values ever
// stored in the permissions table or checked by the gate.
const (
	PermProductsRead   = "products.read"
	PermProductsWrite  = "products.write"
	PermProductsDelete = "products.delete"

	PermSKUsRead  = "skus.read"
	PermSKUsWrite = "skus.write"

	PermCategoriesRead  = "categories.read"
	PermCategoriesWrite = "categories.write"

	PermInquiriesRead   = "inquiries.read"
	PermInquiriesWrite  = "inquiries.write"
	PermInquiriesAssign = "inquiries.assign"

	PermMediaRead   = "media.read"
	PermMediaWrite  = "media.write"
	PermMediaDelete = "media.delete"

	PermUsersManage = "users.manage"
	PermRolesManage = "roles.manage"
	PermSitesManage = "sites.manage"
	PermAuditRead   = "audit.read"
)

// AllPermissions returns every known permission name
func AllPermissions() []string {
	return []string{
		PermProductsRead, PermProductsWrite, PermProductsDelete,
		PermSKUsRead, PermSKUsWrite,
		PermCategoriesRead, PermCategoriesWrite,
		PermInquiriesRead, PermInquiriesWrite, PermInquiriesAssign,
		PermMediaRead, PermMediaWrite, PermMediaDelete,
		PermUsersManage, PermRolesManage, PermSitesManage, PermAuditRead,
	}
}

// classPriority ranks the known role classes for assignability checks.
// Unknown values rank below everything.
func classPriority(class identity.RoleClass) int {
	switch class {
	case identity.RoleClassSuperAdmin:
		return 100
	case identity.RoleClassExporterAdmin:
		return 80
	case identity.RoleClassFactoryAdmin:
		return 60
	case identity.RoleClassExporterSales:
		return 40
	case identity.RoleClassFactorySales:
		return 20
	default:
		return -1
	}
}

// ClassAssignable reports whether the caller may give a custom role the
// requested class. The empty class is always fine; super_admin is never
// assignable to a custom role; any other value must be a known class no
// broader than the caller's own.
func ClassAssignable(caller *identity.Identity, class identity.RoleClass) bool {
	if class == identity.RoleClassUnknown {
		return true
	}
	if class == identity.RoleClassSuperAdmin {
		return false
	}
	if classPriority(class) < 0 {
		return false
	}
	if caller.Class == identity.RoleClassSuperAdmin {
		return true
	}
	return classPriority(class) <= classPriority(caller.Class)
}

// SystemRole describes one built-in role seeded at install time
type SystemRole struct {
	Name        string
	DisplayName string
	Priority    int
	Class       identity.RoleClass
	Permissions []string
}

// SystemRoles returns the built-in roles. Priorities drive default-site
// selection, so admins outrank sales everywhere.
func SystemRoles() []SystemRole {
	readWrite := []string{
		PermProductsRead, PermProductsWrite,
		PermSKUsRead, PermSKUsWrite,
		PermCategoriesRead,
		PermInquiriesRead, PermInquiriesWrite,
		PermMediaRead, PermMediaWrite,
	}
	adminExtra := []string{
		PermProductsDelete, PermCategoriesWrite, PermInquiriesAssign,
		PermMediaDelete, PermUsersManage, PermSitesManage, PermAuditRead,
	}

	return []SystemRole{
		{
			Name:        "super_admin",
			DisplayName: "Super Administrator",
			Priority:    100,
			Class:       identity.RoleClassSuperAdmin,
			Permissions: []string{identity.PermissionWildcard},
		},
		{
			Name:        "exporter_admin",
			DisplayName: "Exporter Administrator",
			Priority:    80,
			Class:       identity.RoleClassExporterAdmin,
			Permissions: append(append([]string{PermRolesManage}, readWrite...), adminExtra...),
		},
		{
			Name:        "factory_admin",
			DisplayName: "Factory Administrator",
			Priority:    60,
			Class:       identity.RoleClassFactoryAdmin,
			Permissions: append(append([]string{}, readWrite...), adminExtra...),
		},
		{
			Name:        "exporter_sales",
			DisplayName: "Exporter Sales",
			Priority:    40,
			Class:       identity.RoleClassExporterSales,
			Permissions: readWrite,
		},
		{
			Name:        "factory_sales",
			DisplayName: "Factory Sales",
			Priority:    20,
			Class:       identity.RoleClassFactorySales,
			Permissions: readWrite,
		},
	}
}
