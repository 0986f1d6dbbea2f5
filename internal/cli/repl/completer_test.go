package repl

import (
	"reflect"
	"testing"
)

func TestCompleter_Complete(t *testing.T) {
	c := NewCompleter("session show", "session refresh", "balance")

	tests := []struct {
		prefix string
		want   []string
	}{
		{"session", []string{"session refresh", "session show"}},
		{"b", []string{"balance"}},
		{"e", []string{"exit"}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		if got := c.Complete(tt.prefix); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Complete(%q) = %v, want %v", tt.prefix, got, tt.want)
		}
	}
	if got := len(c.Complete("")); got != 6 {
		t.Errorf("Complete(\"\") returned %d entries, want 6", got)
	}
}
