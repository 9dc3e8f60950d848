package auth

import (
	"sort"
	"strings"
)

const (
	PermManageUsers = "manage-users"
	PermManageRoles = "manage-roles"
)

var BuiltinPermissions = []Permission{
	{Name: PermManageUsers, Description: "Create, edit and deactivate users"},
	{Name: PermManageRoles, Description: "Edit roles and their permissions"},
}

// PermissionSet is an immutable set of permission names.
type PermissionSet struct {
	names map[string]struct{}
}

// NewPermissionSet builds a set from permission entries, dropping blanks and duplicates.
func NewPermissionSet(perms ...[]Permission) PermissionSet {
	set := make(map[string]struct{})
	for _, list := range perms {
		for _, p := range list {
			name := strings.TrimSpace(p.Name)
			if name == "" {
				continue
			}
			set[name] = struct{}{}
		}
	}
	return PermissionSet{names: set}
}

// FlattenMe derives the permission set from a /auth/me payload: the top-level
// permissions array plus any permissions nested in the user resource.
func FlattenMe(resp MeResponse) PermissionSet {
	if resp.Data == nil {
		return PermissionSet{}
	}
	return NewPermissionSet(resp.Permissions, resp.Data.Permissions)
}

// Has reports whether name is in the set.
func (s PermissionSet) Has(name string) bool {
	_, ok := s.names[strings.TrimSpace(name)]
	return ok
}

// HasAll reports whether every name is in the set. An empty list is trivially satisfied.
func (s PermissionSet) HasAll(names ...string) bool {
	for _, n := range names {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// Len returns the number of permissions.
func (s PermissionSet) Len() int { return len(s.names) }

// Names returns the permission names sorted.
func (s PermissionSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for k := range s.names {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
