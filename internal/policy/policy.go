// Package policy decides whether a role may perform an action on a resource
// kind. The rule table is fixed at compile time and evaluated through an
// in-memory casbin enforcer; nothing is loaded from storage.
package policy

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/spec-kit/incident-service/internal/domain"
)

// Action is an operation class checked by the policy.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions lists every action in table order.
var Actions = []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete}

// Kind is a resource family covered by the policy.
type Kind string

const (
	KindIncident    Kind = "incident"
	KindEquipment   Kind = "equipment"
	KindLocation    Kind = "location"
	KindLogEntry    Kind = "log_entry"
	KindUserAccount Kind = "user_account"
)

// Kinds lists every resource kind in table order.
var Kinds = []Kind{KindIncident, KindEquipment, KindLocation, KindLogEntry, KindUserAccount}

// Decision is the verdict for a single check.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Relation between the actor and the target resource.
const (
	relAny   = "*"
	relOwner = "owner"
	relOther = "other"
)

const modelText = `
[request_definition]
r = role, kind, action, rel

[policy_definition]
p = role, kind, action, rel

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.role == p.role && r.kind == p.kind && r.action == p.action && (p.rel == "*" || p.rel == r.rel)
`

// Rule grants role the action on kind when the relation matches. For
// user accounts "owner" means the actor is the account itself.
type Rule struct {
	Role     domain.Role
	Kind     Kind
	Action   Action
	Relation string
}

func grant(kind Kind, action Action, relation string, roles ...domain.Role) []Rule {
	out := make([]Rule, 0, len(roles))
	for _, role := range roles {
		out = append(out, Rule{Role: role, Kind: kind, Action: action, Relation: relation})
	}
	return out
}

var (
	admin      = domain.RoleAdmin
	technician = domain.RoleTechnician
	reporter   = domain.RoleUser
)

// Rules returns the fixed rule table.
func Rules() []Rule {
	var rules []Rule
	add := func(r []Rule) { rules = append(rules, r...) }

	add(grant(KindIncident, ActionView, relAny, admin, technician, reporter))
	add(grant(KindIncident, ActionCreate, relAny, admin, technician, reporter))
	add(grant(KindIncident, ActionUpdate, relAny, admin, technician))
	add(grant(KindIncident, ActionUpdate, relOwner, reporter))
	add(grant(KindIncident, ActionDelete, relAny, admin, technician))

	add(grant(KindEquipment, ActionView, relAny, admin, technician, reporter))
	add(grant(KindEquipment, ActionCreate, relAny, admin, technician))
	add(grant(KindEquipment, ActionUpdate, relAny, admin, technician))
	add(grant(KindEquipment, ActionDelete, relAny, admin))

	add(grant(KindLocation, ActionView, relAny, admin, technician, reporter))
	add(grant(KindLocation, ActionCreate, relAny, admin))
	add(grant(KindLocation, ActionUpdate, relAny, admin))
	add(grant(KindLocation, ActionDelete, relAny, admin))

	add(grant(KindLogEntry, ActionView, relAny, admin, technician, reporter))
	add(grant(KindLogEntry, ActionCreate, relAny, admin, technician))
	add(grant(KindLogEntry, ActionUpdate, relAny, admin, technician))
	add(grant(KindLogEntry, ActionDelete, relAny, admin))

	add(grant(KindUserAccount, ActionView, relAny, admin))
	add(grant(KindUserAccount, ActionView, relOwner, technician, reporter))
	add(grant(KindUserAccount, ActionCreate, relAny, admin))
	add(grant(KindUserAccount, ActionUpdate, relAny, admin))
	add(grant(KindUserAccount, ActionUpdate, relOwner, technician, reporter))
	// An admin may never delete their own account.
	add(grant(KindUserAccount, ActionDelete, relOther, admin))

	return rules
}

// Policy evaluates the rule table.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

// New compiles the rule table into an enforcer.
func New() (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("parse policy model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("build enforcer: %w", err)
	}

	rules := Rules()
	lines := make([][]string, 0, len(rules))
	for _, r := range rules {
		lines = append(lines, []string{string(r.Role), string(r.Kind), string(r.Action), r.Relation})
	}
	if _, err := enforcer.AddPolicies(lines); err != nil {
		return nil, fmt.Errorf("load policy rules: %w", err)
	}
	return &Policy{enforcer: enforcer}, nil
}

var (
	defaultOnce   sync.Once
	defaultPolicy *Policy
	defaultErr    error
)

// Default returns a process-wide policy, built on first use.
func Default() (*Policy, error) {
	defaultOnce.Do(func() {
		defaultPolicy, defaultErr = New()
	})
	return defaultPolicy, defaultErr
}

// Decide returns Allow or Deny for every input combination. Unknown roles,
// actions, or kinds match no rule and are denied.
func (p *Policy) Decide(role domain.Role, action Action, kind Kind, isOwner bool) Decision {
	if p == nil || p.enforcer == nil {
		return Deny
	}
	rel := relOther
	if isOwner {
		rel = relOwner
	}
	ok, err := p.enforcer.Enforce(string(role), string(kind), string(action), rel)
	if err != nil || !ok {
		return Deny
	}
	return Allow
}

// Allowed is Decide reduced to a bool.
func (p *Policy) Allowed(role domain.Role, action Action, kind Kind, isOwner bool) bool {
	return p.Decide(role, action, kind, isOwner) == Allow
}
