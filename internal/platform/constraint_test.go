package platform

import "testing"

func TestConstraintMatches(t *testing.T) {
	darwin64 := &Info{OS: "darwin", Arch: "amd64", Bits: 64}
	darwin32 := &Info{OS: "darwin", Arch: "386", Bits: 32}
	linuxArm := &Info{OS: "linux", Arch: "arm64", Bits: 64}

	tests := []struct {
		name       string
		constraint Constraint
		info       *Info
		want       bool
	}{
		{"any_matches_everything", Constraint{}, darwin32, true},
		{"64_bit_on_64_bit", Constraint{Bits: 64}, darwin64, true},
		{"64_bit_on_32_bit", Constraint{Bits: 64}, darwin32, false},
		{"32_bit_on_32_bit", Constraint{Bits: 32}, darwin32, true},
		{"os_match", Constraint{OS: []string{"darwin"}}, darwin64, true},
		{"os_mismatch", Constraint{OS: []string{"darwin"}}, linuxArm, false},
		{"os_list", Constraint{OS: []string{"darwin", "linux"}}, linuxArm, true},
		{"arch_match", Constraint{Arch: []string{"arm64"}}, linuxArm, true},
		{"arch_mismatch", Constraint{Arch: []string{"arm64"}}, darwin64, false},
		{"combined", Constraint{OS: []string{"darwin"}, Arch: []string{"amd64"}, Bits: 64}, darwin64, true},
		{"combined_fails_on_one_field", Constraint{OS: []string{"darwin"}, Bits: 32}, darwin64, false},
		{"nil_info", Constraint{}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.constraint.Matches(tt.info); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConstraintMatchesRawArchSpelling(t *testing.T) {
	c := Constraint{Arch: []string{"amd64"}}
	if !c.Matches(&Info{OS: "linux", Arch: "x86_64", Bits: 64}) {
		t.Error("expected x86_64 to match amd64")
	}
}

func TestConstraintNormalize(t *testing.T) {
	c := Constraint{OS: []string{"Darwin"}, Arch: []string{"x86_64", "AARCH64"}, Bits: 64}.Normalize()

	if c.OS[0] != "darwin" {
		t.Errorf("OS = %v", c.OS)
	}
	if c.Arch[0] != "amd64" || c.Arch[1] != "arm64" {
		t.Errorf("Arch = %v", c.Arch)
	}
	if c.Bits != 64 {
		t.Errorf("Bits = %d", c.Bits)
	}
}

func TestConstraintValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       Constraint
		wantErr bool
	}{
		{"empty", Constraint{}, false},
		{"bits_64", Constraint{Bits: 64}, false},
		{"bits_16", Constraint{Bits: 16}, true},
		{"blank_os", Constraint{OS: []string{""}}, true},
		{"blank_arch", Constraint{Arch: []string{"amd64", ""}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNamedConstraint(t *testing.T) {
	c, ok := NamedConstraint("is_64_bit")
	if !ok {
		t.Fatal("is_64_bit should be a named constraint")
	}
	if c.Bits != 64 {
		t.Errorf("Bits = %d, want 64", c.Bits)
	}

	if _, ok := NamedConstraint(" IS_MACOS "); !ok {
		t.Error("lookup should be case and space insensitive")
	}

	if _, ok := NamedConstraint("is_toaster"); ok {
		t.Error("unknown name should not resolve")
	}
}

func TestConstraintString(t *testing.T) {
	tests := []struct {
		c    Constraint
		want string
	}{
		{Constraint{}, "any"},
		{Constraint{Bits: 64}, "bits=64"},
		{Constraint{OS: []string{"darwin"}, Arch: []string{"amd64", "arm64"}}, "os=darwin arch=amd64|arm64"},
	}

	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
