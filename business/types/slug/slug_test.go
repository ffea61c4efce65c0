package slug_test

import (
	"testing"

	"github.com/jcpaschoal/tenantauth/business/types/slug"
)

func TestParse(t *testing.T) {
	tests := []struct {
		value string
		valid bool
	}{
		{value: "acme", valid: true},
		{value: "acme-corp-2", valid: true},
		{value: "a1", valid: true},
		{value: "a", valid: false},
		{value: "Acme", valid: false},
		{value: "acme corp", valid: false},
		{value: "acme_corp", valid: false},
		{value: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			s, err := slug.Parse(tt.value)
			switch {
			case tt.valid && err != nil:
				t.Fatalf("Parse(%q): %v", tt.value, err)
			case !tt.valid && err == nil:
				t.Fatalf("Parse(%q) = %q, want error", tt.value, s)
			case tt.valid && s.String() != tt.value:
				t.Errorf("Parse(%q) = %q", tt.value, s)
			}
		})
	}
}
