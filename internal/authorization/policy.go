package authorization

const (
	ObjectAccount                = "account"
	ObjectAdminIdentity          = "admin_identity"
	ObjectThresholdRule          = "threshold_rule"
	ObjectCountryHealth          = "country_health"
	ObjectCountryScope           = "country_scope"
	ObjectNotificationPreference = "notification_preference"
	ObjectAuditLog               = "audit_log"
)

const (
	ActionAccountSuspend         = "account.suspend"
	ActionAccountUnsuspend       = "account.unsuspend"
	ActionAccountDelete          = "account.delete"
	ActionAccountUpdateRole      = "account.update_role"
	ActionAdminAssignCountries   = "admin_identity.assign_countries"
	ActionThresholdRuleView      = "threshold_rule.view"
	ActionThresholdRuleManage    = "threshold_rule.manage"
	ActionCountryHealthView      = "country_health.view"
	ActionCountryScopeSelect     = "country_scope.select"
	ActionNotificationPrefManage = "notification_preference.manage"
	ActionAuditLogView           = "audit_log.view"
)

const (
	RoleSuperAdmin    = "super_admin"
	RoleRegionalAdmin = "regional_admin"
	RoleModerator     = "moderator"
)

func roleSubject(role string) string {
	return "role:" + role
}

func defaultPolicies() [][]string {
	everyone := [][]string{
		{ObjectCountryScope, ActionCountryScopeSelect},
		{ObjectCountryHealth, ActionCountryHealthView},
		{ObjectNotificationPreference, ActionNotificationPrefManage},
		{ObjectAccount, ActionAccountSuspend},
		{ObjectAccount, ActionAccountUnsuspend},
	}
	regional := [][]string{
		{ObjectAccount, ActionAccountDelete},
		{ObjectThresholdRule, ActionThresholdRuleView},
		{ObjectAuditLog, ActionAuditLogView},
	}
	superOnly := [][]string{
		{ObjectAccount, ActionAccountUpdateRole},
		{ObjectAdminIdentity, ActionAdminAssignCountries},
		{ObjectThresholdRule, ActionThresholdRuleManage},
	}

	var policies [][]string
	add := func(role string, rules [][]string) {
		for _, rule := range rules {
			policies = append(policies, []string{roleSubject(role), rule[0], rule[1]})
		}
	}
	add(RoleModerator, everyone)
	add(RoleRegionalAdmin, everyone)
	add(RoleRegionalAdmin, regional)
	add(RoleSuperAdmin, everyone)
	add(RoleSuperAdmin, regional)
	add(RoleSuperAdmin, superOnly)
	return policies
}
