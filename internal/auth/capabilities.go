package auth

// Capability keys consulted by this service. Business capabilities are data:
// the CRUD layer declares its own keys and checks them through the principal;
// nothing here needs a new code path per capability.
const (
	CapManageTenants = "tenant.manage"
	CapManageUsers   = "user.manage"
	CapManageRoles   = "role.manage"
	CapImpersonate   = "auth.impersonate"

	CapTimeEntryRead  = "time_entry.read"
	CapTimeEntryWrite = "time_entry.write"
	CapInvoiceRead    = "invoice.read"
	CapInvoiceWrite   = "invoice.write"
	CapClientManage   = "client.manage"
)

// BuiltinCapabilities are seeded at startup so grants can reference them.
var BuiltinCapabilities = []Capability{
	{Key: CapManageTenants, Description: "Provision and deactivate tenants"},
	{Key: CapManageUsers, Description: "Create and manage users"},
	{Key: CapManageRoles, Description: "Create roles and edit capability grants"},
	{Key: CapImpersonate, Description: "Start impersonation sessions"},
	{Key: CapTimeEntryRead, Description: "Read time entries"},
	{Key: CapTimeEntryWrite, Description: "Create and edit time entries"},
	{Key: CapInvoiceRead, Description: "Read invoices"},
	{Key: CapInvoiceWrite, Description: "Create and edit invoices"},
	{Key: CapClientManage, Description: "Manage clients"},
}
