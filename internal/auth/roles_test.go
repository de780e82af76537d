package auth

import "testing"

func TestHierarchyIsReflexive(t *testing.T) {
	for _, role := range Roles {
		if !role.Includes(role) {
			t.Fatalf("role %s does not include itself", role)
		}
	}
}

func TestHierarchyChain(t *testing.T) {
	chain := []Role{RoleAdmin, RoleControl, RoleBoard, RoleRegular}
	for i, upper := range chain {
		for _, lower := range chain[i:] {
			if !upper.Includes(lower) {
				t.Fatalf("expected %s to include %s", upper, lower)
			}
		}
	}
	if RoleAccountant.Includes(RoleRegular) || len(Hierarchy[RoleAccountant]) != 1 {
		t.Fatalf("accountant must only include itself")
	}
}

func TestAuthorize(t *testing.T) {
	cases := []struct {
		name     string
		caller   Role
		required []Role
		want     bool
	}{
		{name: "admin regular", caller: RoleAdmin, required: []Role{RoleRegular}, want: true},
		{name: "admin board control", caller: RoleAdmin, required: []Role{RoleBoard, RoleControl}, want: true},
		{name: "admin accountant", caller: RoleAdmin, required: []Role{RoleAccountant}, want: false},
		{name: "admin or accountant", caller: RoleAccountant, required: []Role{RoleAdmin, RoleAccountant}, want: true},
		{name: "board needs control", caller: RoleBoard, required: []Role{RoleControl}, want: false},
		{name: "control needs board", caller: RoleControl, required: []Role{RoleBoard}, want: true},
		{name: "accountant regular", caller: RoleAccountant, required: []Role{RoleRegular}, want: false},
		{name: "empty required", caller: RoleAdmin, required: nil, want: false},
		{name: "unknown caller", caller: Role("guest"), required: []Role{RoleRegular}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Authorize(tc.caller, tc.required...); got != tc.want {
				t.Fatalf("Authorize(%s, %v) = %v, want %v", tc.caller, tc.required, got, tc.want)
			}
		})
	}
}

func TestAuthorizeAdminSubsetsOfChain(t *testing.T) {
	chain := []Role{RoleRegular, RoleBoard, RoleControl}
	for mask := 1; mask < 1<<len(chain); mask++ {
		var required []Role
		for i, role := range chain {
			if mask&(1<<i) != 0 {
				required = append(required, role)
			}
		}
		if !Authorize(RoleAdmin, required...) {
			t.Fatalf("admin should satisfy %v", required)
		}
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Board ")
	if err != nil || role != RoleBoard {
		t.Fatalf("ParseRole: got %q err=%v", role, err)
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Fatalf("expected error for unknown role")
	}

	var r Role
	if err := r.UnmarshalText([]byte("owner")); err == nil {
		t.Fatalf("expected UnmarshalText to reject unknown role")
	}
	if _, err := Role("owner").MarshalText(); err == nil {
		t.Fatalf("expected MarshalText to reject unknown role")
	}
}
