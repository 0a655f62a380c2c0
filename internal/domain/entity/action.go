package entity

import "strings"

// Action names what an audit event records.
type Action string

const (
	ActionLogin              Action = "login"
	ActionLogout             Action = "logout"
	ActionRegister           Action = "register"
	ActionVerifyEmail        Action = "verify-email"
	ActionResendVerification Action = "resend-verification"
	ActionTokenRefresh       Action = "token-refresh"
	ActionPasswordChange     Action = "password-change"
	ActionAccountLock        Action = "account-lock"
	ActionRoleChange         Action = "role-change"
	ActionPermissionChange   Action = "permission-change"
	ActionUserRetrieve       Action = "user-retrieve"
	ActionUserUpdate         Action = "user-update"
	ActionUserDelete         Action = "user-delete"
	ActionAuditRetrieve      Action = "audit-retrieve"
	ActionAuditSearch        Action = "audit-search"
	ActionAuditSummary       Action = "audit-summary"
	ActionAuditPurge         Action = "audit-purge"
	ActionAuditExport        Action = "audit-export"
	ActionAdmin              Action = "admin-action"
)

// EventCategory groups actions for filtering and alerting.
type EventCategory string

const (
	CategoryAuthentication   EventCategory = "authentication"
	CategoryDataModification EventCategory = "data_modification"
	CategoryDataAccess       EventCategory = "data_access"
	CategoryPermission       EventCategory = "permission"
	CategorySystem           EventCategory = "system"
)

// Severity of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AuditStatus is the outcome of the audited operation.
type AuditStatus string

const (
	StatusSuccess AuditStatus = "success"
	StatusFailed  AuditStatus = "failed"
	StatusPending AuditStatus = "pending"
)

func (s AuditStatus) IsValid() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusPending:
		return true
	default:
		return false
	}
}

type actionTraits struct {
	category EventCategory
	// elevated actions are worth a warning even when they succeed.
	elevated bool
	// anonymous actions may be recorded without an actor.
	anonymous bool
}

var actionRegistry = map[Action]actionTraits{
	ActionLogin:              {category: CategoryAuthentication, anonymous: true},
	ActionLogout:             {category: CategoryAuthentication},
	ActionRegister:           {category: CategoryAuthentication, anonymous: true},
	ActionVerifyEmail:        {category: CategoryAuthentication, anonymous: true},
	ActionResendVerification: {category: CategoryAuthentication},
	ActionTokenRefresh:       {category: CategoryAuthentication},
	ActionPasswordChange:     {category: CategoryAuthentication},
	ActionAccountLock:        {category: CategoryAuthentication, elevated: true},
	ActionRoleChange:         {category: CategoryPermission, elevated: true},
	ActionPermissionChange:   {category: CategoryPermission, elevated: true},
	ActionUserRetrieve:       {category: CategoryDataAccess},
	ActionUserUpdate:         {category: CategoryDataModification},
	ActionUserDelete:         {category: CategoryDataModification, elevated: true},
	ActionAuditRetrieve:      {category: CategoryDataAccess},
	ActionAuditSearch:        {category: CategoryDataAccess},
	ActionAuditSummary:       {category: CategoryDataAccess},
	ActionAuditPurge:         {category: CategoryDataModification, elevated: true},
	ActionAuditExport:        {category: CategoryDataAccess},
	ActionAdmin:              {category: CategorySystem},
}

// Registered reports whether the action is part of the static taxonomy.
func (a Action) Registered() bool {
	_, ok := actionRegistry[a]

	return ok
}

// AllowsAnonymous reports whether an event may be stored without an actor.
func (a Action) AllowsAnonymous() bool {
	return actionRegistry[a].anonymous
}

// Category returns the registered category, or the keyword classification for unknown actions.
func (a Action) Category() EventCategory {
	if traits, ok := actionRegistry[a]; ok {
		return traits.category
	}

	return classifyByKeyword(string(a))
}

// Severity derives the severity level from the action and the outcome.
func (a Action) Severity(status AuditStatus) Severity {
	category := a.Category()
	if status == StatusFailed {
		if category == CategoryAuthentication || category == CategoryPermission {
			return SeverityCritical
		}

		return SeverityWarning
	}

	if status == StatusSuccess && a.elevated() {
		return SeverityWarning
	}

	return SeverityInfo
}

func (a Action) elevated() bool {
	if traits, ok := actionRegistry[a]; ok {
		return traits.elevated
	}

	name := strings.ToLower(string(a))
	for _, keyword := range []string{"delete", "role", "permission", "lock"} {
		if strings.Contains(name, keyword) {
			return true
		}
	}

	return false
}

var keywordRules = []struct {
	keywords []string
	category EventCategory
}{
	{[]string{"login", "logout", "password", "verification"}, CategoryAuthentication},
	{[]string{"create", "update", "delete"}, CategoryDataModification},
	{[]string{"retrieve"}, CategoryDataAccess},
	{[]string{"role", "permission"}, CategoryPermission},
	{[]string{"admin"}, CategorySystem},
}

func classifyByKeyword(action string) EventCategory {
	name := strings.ToLower(action)
	for _, rule := range keywordRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(name, keyword) {
				return rule.category
			}
		}
	}

	return CategorySystem
}

// Actions lists the registered taxonomy.
func Actions() []Action {
	actions := make([]Action, 0, len(actionRegistry))
	for action := range actionRegistry {
		actions = append(actions, action)
	}

	return actions
}
