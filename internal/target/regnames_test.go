package target

import "testing"

func TestRegisterName(t *testing.T) {
	tests := []struct {
		id   uint64
		want string
	}{
		{0, "rax"},
		{7, "rsp"},
		{16, "rip"},
		{33, "r33"}, // outside the mapped set
	}
	for _, tt := range tests {
		if got := RegisterName(tt.id); got != tt.want {
			t.Errorf("RegisterName(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
