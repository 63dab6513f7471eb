package perm

import "testing"

func TestParseRolesCommaSeparated(t *testing.T) {
	// 旧数据里的角色串：大小写混杂、带空格、逗号分隔
	set := ParseRoles(" Buyer , ACCOUNTING ")

	if !set.Has(PermExecute) {
		t.Error("buyer should have execute permission")
	}
	if !set.Has(PermReceive) {
		t.Error("buyer should have receive permission")
	}
	if !set.Has(PermExpenditure) {
		t.Error("accounting should have expenditure permission")
	}
	if set.Has(PermMiddleApprove) {
		t.Error("buyer+accounting should not have middle approve")
	}
	if set.IsAdmin() {
		t.Error("buyer+accounting is not admin")
	}
}

func TestParseRolesMultipleChunks(t *testing.T) {
	// 数组形态与逗号串形态混用
	set := ParseRoles("requester", "middle_manager,final_manager")

	if !set.Has(PermCreate) {
		t.Error("requester should have create permission")
	}
	if !set.Has(PermMiddleApprove) {
		t.Error("middle_manager should have middle approve")
	}
	if !set.Has(PermFinalApprove) {
		t.Error("final_manager should have final approve")
	}
}

func TestParseRolesUnknownDropped(t *testing.T) {
	set := ParseRoles("ceo,, intern ,buyer")

	if !set.Has(PermExecute) {
		t.Error("known role in messy string should still resolve")
	}
	if len(set.List()) != len(rolePermissions[RoleBuyer]) {
		t.Errorf("unknown roles must not contribute permissions, got %v", set.List())
	}
}

func TestParseRolesAdmin(t *testing.T) {
	set := ParseRoles("Admin")

	if !set.IsAdmin() {
		t.Error("admin flag should be set")
	}
	if !set.Has(PermDeleteAny) {
		t.Error("admin should have delete_any")
	}
}

func TestParseRolesEmpty(t *testing.T) {
	set := ParseRoles()

	if set.IsAdmin() || len(set.List()) != 0 {
		t.Error("empty roles should produce empty set")
	}
}
