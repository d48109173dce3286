package dynamo

import (
	"math"
	"testing"
)

func TestStateNorm(t *testing.T) {
	s := State{3, 4}
	if s.Norm() != 5 {
		t.Errorf("expected norm 5, got %f", s.Norm())
	}
}

func TestStateIsValid(t *testing.T) {
	if !(State{1, 2}).IsValid() {
		t.Error("finite state should be valid")
	}
	if (State{1, math.NaN()}).IsValid() {
		t.Error("NaN state should be invalid")
	}
	if (State{math.Inf(1)}).IsValid() {
		t.Error("Inf state should be invalid")
	}
}

func TestVectorCloneIsIndependent(t *testing.T) {
	v := Vector{1, 2, 3}
	c := v.Clone()
	c[0] = 10
	if v[0] != 1 {
		t.Errorf("clone aliases original: %v", v)
	}
}

func TestVectorString(t *testing.T) {
	got := Vector{0.2, 1}.String()
	if got != "[0.2000 1.0000]" {
		t.Errorf("unexpected format %q", got)
	}
}
