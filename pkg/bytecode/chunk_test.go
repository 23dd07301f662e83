package bytecode

import "testing"

func TestChunk_WriteAndLinesStayParallel(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpNil, 1)
	c.WriteOp(OpTrue, 1)
	c.WriteOp(OpPop, 2)

	if len(c.Code) != len(c.Lines) {
		t.Fatalf("len(Code)=%d != len(Lines)=%d", len(c.Code), len(c.Lines))
	}
	if c.Lines[0] != 1 || c.Lines[1] != 1 || c.Lines[2] != 2 {
		t.Fatalf("unexpected line table: %v", c.Lines)
	}
}

func TestChunk_AddConstantTooMany(t *testing.T) {
	c := NewChunk()
	for i := 0; i < maxConstants; i++ {
		if _, err := c.AddConstant(NumberValue(float64(i))); err != nil {
			t.Fatalf("unexpected error adding constant %d: %v", i, err)
		}
	}
	if _, err := c.AddConstant(NumberValue(999)); err == nil {
		t.Fatal("expected error after exceeding max constants")
	}
}

func TestChunk_PatchJumpLandsOnBoundary(t *testing.T) {
	c := NewChunk()
	patch := c.EmitJump(OpJumpIfFalse, 1)
	c.WriteOp(OpPop, 1) // body of the "then" branch, 1 byte
	if err := c.PatchJump(patch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jump := c.ReadU16(patch)
	wantTarget := len(c.Code)
	gotTarget := patch + 2 + jump
	if gotTarget != wantTarget {
		t.Fatalf("jump target = %d, want %d", gotTarget, wantTarget)
	}
}

func TestChunk_EmitLoopJumpsBackward(t *testing.T) {
	c := NewChunk()
	loopStart := len(c.Code)
	c.WriteOp(OpNil, 1)
	if err := c.EmitLoop(loopStart, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	offsetPos := len(c.Code) - 2
	jump := c.ReadU16(offsetPos)
	gotTarget := offsetPos + 2 - jump
	if gotTarget != loopStart {
		t.Fatalf("loop target = %d, want %d", gotTarget, loopStart)
	}
}

func TestValue_EqualityAndFalseyness(t *testing.T) {
	if !NilValue().IsFalsey() {
		t.Fatal("nil should be falsey")
	}
	if !BoolValue(false).IsFalsey() {
		t.Fatal("false should be falsey")
	}
	if BoolValue(true).IsFalsey() {
		t.Fatal("true should be truthy")
	}
	if NumberValue(0).IsFalsey() {
		t.Fatal("0 should be truthy")
	}

	a := NumberValue(1)
	b := NumberValue(1)
	if !a.Equal(b) {
		t.Fatal("equal numbers should compare equal")
	}
	if NumberValue(1).Equal(BoolValue(true)) {
		t.Fatal("cross-type comparison must be false, never an error")
	}

	s1 := &StringObject{Text: "foo", Hash: FNV1a32("foo")}
	s2 := &StringObject{Text: "foo", Hash: FNV1a32("foo")}
	if StringValue(s1).Equal(StringValue(s2)) {
		t.Fatal("distinct StringObjects with equal content but different identity must not be Equal at the Value layer -- interning is the VM's job")
	}
	if !StringValue(s1).Equal(StringValue(s1)) {
		t.Fatal("same StringObject pointer must compare equal")
	}
}

func TestValue_NumberFormatting(t *testing.T) {
	tests := []struct {
		n    float64
		want string
	}{
		{10, "10"},
		{-2.5, "-2.5"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := NumberValue(tt.n).String(); got != tt.want {
			t.Fatalf("NumberValue(%v).String() = %q, want %q", tt.n, got, tt.want)
		}
	}
}
