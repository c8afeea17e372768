package logfields

import (
	"errors"
	"testing"
)

func TestErrorAttr(t *testing.T) {
	if got := Error(nil); got.Value.String() != "" {
		t.Fatalf("Error(nil) = %q, want empty", got.Value.String())
	}
	if got := Error(errors.New("boom")); got.Key != KeyError || got.Value.String() != "boom" {
		t.Fatalf("Error(boom) = %v", got)
	}
}

func TestStepAttr(t *testing.T) {
	a := Step(3)
	if a.Key != KeyStep || a.Value.Int64() != 3 {
		t.Fatalf("Step(3) = %v", a)
	}
}
