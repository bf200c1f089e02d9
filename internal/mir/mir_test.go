package mir

import (
	"math"
	"testing"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{Scalar(ElemF32), "f32"},
		{Scalar(ElemF64), "f64"},
		{Vec(ElemF32, 4), "v4f32"},
		{Vec(ElemI32, 2), "v2i32"},
		{Pointer(Scalar(ElemF32), SpacePrivate), "p5f32"},
		{Pointer(Vec(ElemF64, 2), SpaceGeneric), "p0v2f64"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		back, ok := ParseType(tt.want)
		if !ok || !back.Equal(tt.typ) {
			t.Errorf("ParseType(%q) = %v, %v; want %v", tt.want, back, ok, tt.typ)
		}
	}
}

func TestParseTypeRejects(t *testing.T) {
	for _, s := range []string{"", "f8", "v1f32", "v17f32", "vf32", "p", "pf32", "q32"} {
		if _, ok := ParseType(s); ok {
			t.Errorf("ParseType(%q) accepted", s)
		}
	}
}

func TestConstQuantization(t *testing.T) {
	third := 1.0 / 3.0
	v := ConstFloat(Scalar(ElemF32), third)
	if v.F == third {
		t.Fatal("f32 constant kept full double precision")
	}
	if v.F != float64(float32(third)) {
		t.Fatalf("f32 constant = %v, want %v", v.F, float64(float32(third)))
	}
	d := ConstFloat(Scalar(ElemF64), third)
	if d.F != third {
		t.Fatalf("f64 constant = %v, want %v", d.F, third)
	}
}

func TestSignedZeroDistinct(t *testing.T) {
	neg := math.Copysign(0, -1)
	if SameBits(0.0, neg) {
		t.Fatal("SameBits(+0, -0) = true")
	}
	a := ConstFloat(Scalar(ElemF32), 0.0)
	b := ConstFloat(Scalar(ElemF32), neg)
	if a.Identical(b) {
		t.Fatal("+0.0 and -0.0 constants compare identical")
	}
	if !a.IsZeroConst() || !b.IsZeroConst() {
		t.Fatal("both zeros must count as zero constants")
	}
}

func TestSplat(t *testing.T) {
	v := Splat(Vec(ElemF32, 4), 1.5)
	got, ok := v.SplatFloat()
	if !ok || got != 1.5 {
		t.Fatalf("SplatFloat() = %v, %v", got, ok)
	}
	if _, ok := FloatVec(Vec(ElemF32, 2), []float64{1, 2}).SplatFloat(); ok {
		t.Fatal("non-uniform vector reported as splat")
	}
}

func TestFormatNegZero(t *testing.T) {
	v := ConstFloat(Scalar(ElemF32), math.Copysign(0, -1))
	if got := v.String(); got != "-0.0" {
		t.Fatalf("String() = %q, want -0.0", got)
	}
}

func TestMergeUlps(t *testing.T) {
	tests := []struct{ a, b, want float64 }{
		{0, 2.5, 0},
		{2.5, 0, 0},
		{2.5, 4, 2.5},
		{4, 2.5, 2.5},
	}
	for _, tt := range tests {
		if got := MergeUlps(tt.a, tt.b); got != tt.want {
			t.Errorf("MergeUlps(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMergeLocs(t *testing.T) {
	a := SrcLoc{File: "k.cl", Line: 3, Col: 1}
	b := SrcLoc{File: "k.cl", Line: 9, Col: 5}
	if got := MergeLocs([]SrcLoc{a, a}); got != a {
		t.Fatalf("equal locations: got %v", got)
	}
	got := MergeLocs([]SrcLoc{a, b})
	if got.File != "k.cl" || got.IsValid() {
		t.Fatalf("diverging locations: got %v, want file-only", got)
	}
	if got := MergeLocs([]SrcLoc{{}, a}); got != a {
		t.Fatalf("unknown location must not poison the merge: got %v", got)
	}
}

func TestDeclareConflict(t *testing.T) {
	m := NewModule("t")
	sig := Signature{Params: []Type{Scalar(ElemF32)}, Ret: Scalar(ElemF32)}
	if !m.Declare("sin_f32", sig) {
		t.Fatal("first declare failed")
	}
	if !m.Declare("sin_f32", sig) {
		t.Fatal("re-declare with same signature failed")
	}
	other := Signature{Params: []Type{Scalar(ElemF64)}, Ret: Scalar(ElemF64)}
	if m.Declare("sin_f32", other) {
		t.Fatal("conflicting declare accepted")
	}
}

func TestIsDeclaration(t *testing.T) {
	m := NewModule("t")
	sig := Signature{Ret: Scalar(ElemF32)}
	m.Declare("ext", sig)
	m.Funcs = append(m.Funcs, &Function{Name: "own", Ret: Scalar(ElemF32)})
	if !m.IsDeclaration("ext") {
		t.Error("ext should be a declaration")
	}
	if m.IsDeclaration("own") {
		t.Error("defined function reported as declaration")
	}
	if m.IsDeclaration("unknown") {
		t.Error("unknown name reported as declaration")
	}
}
