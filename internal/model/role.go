package model

import "errors"

// Role is a canonical message role. Every persisted message has exactly
// one of these four values; no other role string is ever stored.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ErrUnknownRole is returned by ParseRole when a provider-specific role
// string has no canonical mapping. Callers must skip the message and
// record a warning rather than guessing a canonical value.
var ErrUnknownRole = errors.New("model: unknown role")

// roleAliases maps every provider-specific role string this system knows
// about onto a canonical Role. Providers that need their own mapping
// call ParseRole with their own alias table via ParseRoleFrom instead.
var roleAliases = map[string]Role{
	"user":      RoleUser,
	"human":     RoleUser,
	"assistant": RoleAssistant,
	"model":     RoleAssistant,
	"bard":      RoleAssistant,
	"system":    RoleSystem,
	"tool":      RoleTool,
}

// ParseRole maps a source-specific role string to a canonical Role using
// the default alias table. It returns ErrUnknownRole for anything it
// cannot map; callers must never fall back to a default role.
func ParseRole(raw string) (Role, error) {
	return ParseRoleFrom(roleAliases, raw)
}

// ParseRoleFrom maps raw using the given alias table, allowing a provider
// parser to extend or override the default mapping.
func ParseRoleFrom(aliases map[string]Role, raw string) (Role, error) {
	role, ok := aliases[raw]
	if !ok {
		return "", ErrUnknownRole
	}
	return role, nil
}

// Valid reports whether r is one of the four canonical roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	default:
		return false
	}
}
