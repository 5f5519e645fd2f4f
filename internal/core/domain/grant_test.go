package domain

import "testing"

func TestPermissions_String(t *testing.T) {
	tests := []struct {
		name  string
		perms Permissions
		want  string
	}{
		{"upload", UploadPermissions, "racw"},
		{"read", ReadPermissions, "r"},
		{"none", Permissions{}, ""},
		{"write only", Permissions{Write: true}, "w"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.perms.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPermissions_AllowsWrite(t *testing.T) {
	if ReadPermissions.AllowsWrite() {
		t.Error("expected read permissions to not allow write")
	}
	if !UploadPermissions.AllowsWrite() {
		t.Error("expected upload permissions to allow write")
	}
}

func TestIsAcceptedMIMEType(t *testing.T) {
	accepted := []string{"application/pdf", "image/png", "image/jpeg", "image/tiff"}
	for _, m := range accepted {
		if !IsAcceptedMIMEType(m) {
			t.Errorf("expected %s to be accepted", m)
		}
	}

	rejected := []string{"application/zip", "", "image/gif", "APPLICATION/PDF"}
	for _, m := range rejected {
		if IsAcceptedMIMEType(m) {
			t.Errorf("expected %q to be rejected", m)
		}
	}
}
