package auth

import (
	"encoding/json"
	"testing"
)

func TestPermissionSet(t *testing.T) {
	set := NewPermissionSet([]Permission{{Name: "manage-users"}, {Name: " "}, {Name: "manage-users"}})

	if !set.Has("manage-users") {
		t.Fatalf("expected permission")
	}
	if set.Has("manage-roles") {
		t.Fatalf("unexpected permission")
	}
	if set.Len() != 1 {
		t.Fatalf("expected deduplicated set, got %v", set.Names())
	}
	if !set.HasAll() {
		t.Fatalf("empty requirement must be satisfied")
	}
	if set.HasAll("manage-users", "manage-roles") {
		t.Fatalf("HasAll must require every permission")
	}
}

func TestFlattenMe(t *testing.T) {
	raw := `{
		"data": {"id": 1, "nombre": "Ana", "estado": true, "permissions": [{"id": 9, "name": "view-reports"}]},
		"permissions": [{"name": "manage-users", "description": "Users"}, {"name": "manage-roles"}]
	}`
	var resp MeResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	set := FlattenMe(resp)
	want := []string{"manage-roles", "manage-users", "view-reports"}
	got := set.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
	if resp.Data.Name != "Ana" || !resp.Data.Active {
		t.Fatalf("unexpected identity: %+v", resp.Data)
	}
}

func TestFlattenMeWithoutIdentity(t *testing.T) {
	set := FlattenMe(MeResponse{Permissions: []Permission{{Name: "manage-users"}}})
	if set.Len() != 0 {
		t.Fatalf("permissions without identity must be empty, got %v", set.Names())
	}
}

func TestIdentityCloneDoesNotAlias(t *testing.T) {
	branch := int64(3)
	orig := Identity{ID: 1, BranchID: &branch, Branch: &Branch{ID: 3, Name: "Centro"}}
	cp := orig.Clone()
	*cp.BranchID = 4
	cp.Branch.Name = "Norte"
	if *orig.BranchID != 3 || orig.Branch.Name != "Centro" {
		t.Fatalf("clone aliases original: %+v", orig)
	}
}
