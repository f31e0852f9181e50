package verifier

import (
	"sort"
	"testing"

	"github.com/chazu/bcverify/bytecode"
	"github.com/chazu/bcverify/hierarchy"
)

// sampleTypes covers every kind except the wildcards.
func sampleTypes() []Type {
	return []Type{
		Invalid, Int, Float, Long, Double, SecondWord, Null,
		objectType, tBase, tCircle, tSquare, tShape, tNamed, tString, tOrphan,
		arrayType("[I"), arrayType("[B"), arrayType("[Z"),
		ArrayOf(tCircle), ArrayOf(tSquare), ArrayOf(tBase), ArrayOf(objectType),
		arrayType("[[I"), arrayType("[[F"),
		UninitThis("app/Circle"), UninitNew("app/Circle", 3), UninitNew("app/Circle", 7),
		ReturnAddress(2), ReturnAddress(5),
	}
}

func TestMergeIdempotent(t *testing.T) {
	tt := testTable()
	for _, a := range sampleTypes() {
		if got := tt.Merge(a, a); got != a {
			t.Errorf("Merge(%s, %s) = %s, want %s", a, a, got, a)
		}
	}
}

func TestMergeCommutative(t *testing.T) {
	tt := testTable()
	types := sampleTypes()
	for _, a := range types {
		for _, b := range types {
			ab := tt.Merge(a, b)
			ba := tt.Merge(b, a)
			if ab != ba {
				t.Errorf("Merge(%s, %s) = %s but Merge(%s, %s) = %s", a, b, ab, b, a, ba)
			}
		}
	}
}

func TestMergeIsUpperBound(t *testing.T) {
	tt := testTable()
	types := sampleTypes()
	for _, a := range types {
		for _, b := range types {
			m := tt.Merge(a, b)
			if m == Invalid {
				continue
			}
			if !tt.IsSubtypeOf(a, m) || !tt.IsSubtypeOf(b, m) {
				t.Errorf("Merge(%s, %s) = %s is not an upper bound", a, b, m)
			}
		}
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		a, b Type
		want Type
	}{
		{tCircle, tSquare, tBase},
		{tCircle, tBase, tBase},
		{tCircle, tString, objectType},
		{tShape, tCircle, objectType},
		{Null, tCircle, tCircle},
		{arrayType("[I"), Null, arrayType("[I")},
		{Null, Int, Invalid},
		{Int, Float, Invalid},
		{Long, Double, Invalid},
		{Int, SecondWord, Invalid},
		{Int, tCircle, Invalid},
		{ArrayOf(tCircle), ArrayOf(tSquare), ArrayOf(tBase)},
		{arrayType("[I"), arrayType("[F"), objectType},
		{arrayType("[I"), tCircle, objectType},
		{arrayType("[[I"), arrayType("[[F"), ArrayOf(objectType)},
		{arrayType("[[I"), arrayType("[I"), objectType},
		{UninitNew("app/Circle", 3), UninitNew("app/Circle", 7), Invalid},
		{UninitNew("app/Circle", 3), Null, Invalid},
		{UninitThis("app/Circle"), tCircle, Invalid},
		{ReturnAddress(2), ReturnAddress(5), Invalid},
		// Incomplete chains: the side with a complete chain wins.
		{tOrphan, tCircle, tCircle},
		{ObjectType("app/Gone"), tOrphan, objectType},
	}
	for _, tt := range tests {
		tab := testTable()
		if got := tab.Merge(tt.a, tt.b); got != tt.want {
			t.Errorf("Merge(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestIsSubtypeOf(t *testing.T) {
	tests := []struct {
		t, target Type
		want      bool
	}{
		{Int, Int, true},
		{Int, Float, false},
		{Long, Long, true},
		{SecondWord, Int, false},
		{Null, tCircle, true},
		{Null, arrayType("[I"), true},
		{Null, Int, false},
		{tCircle, tBase, true},
		{tCircle, objectType, true},
		{tBase, tCircle, false},
		{tSquare, tCircle, false},
		{tCircle, tShape, true},
		{tString, tShape, true},
		{tShape, tCircle, false},
		{arrayType("[I"), objectType, true},
		{arrayType("[I"), ObjectType(hierarchy.CloneableClass), true},
		{arrayType("[I"), ObjectType(hierarchy.SerializableClass), true},
		{arrayType("[I"), tString, false},
		{arrayType("[I"), arrayType("[B"), false},
		{arrayType("[Z"), arrayType("[B"), false},
		{ArrayOf(tCircle), ArrayOf(tBase), true},
		{ArrayOf(tBase), ArrayOf(tCircle), false},
		{ArrayOf(tCircle), ArrayOf(objectType), true},
		{arrayType("[[I"), ArrayOf(objectType), true},
		{arrayType("[[I"), arrayType("[Ljava/lang/Cloneable;"), true},
		{arrayType("[I"), ArrayOf(objectType), false},
		{tCircle, AnyReference, true},
		{Null, AnyReference, true},
		{arrayType("[I"), AnyArray, true},
		{Null, AnyArray, true},
		{tCircle, AnyArray, false},
		{UninitNew("app/Circle", 1), tCircle, false},
		{UninitNew("app/Circle", 1), AnyReference, false},
		{UninitNew("app/Circle", 1), UninitNew("app/Circle", 1), true},
		{UninitNew("app/Circle", 1), UninitNew("app/Circle", 2), false},
		{UninitThis("app/Circle"), UninitThis("app/Base"), true},
		{UninitThis("app/Circle"), UninitThis(hierarchy.ObjectClass), false},
		{UninitThis("app/Circle"), tCircle, false},
		{ReturnAddress(1), AnyReference, false},
		{ReturnAddress(1), ReturnAddress(1), true},
		// Incomplete hierarchy data assumes compatibility.
		{tOrphan, tCircle, true},
		{tCircle, ObjectType("app/Unknown"), true},
	}
	for _, tt := range tests {
		tab := testTable()
		if got := tab.IsSubtypeOf(tt.t, tt.target); got != tt.want {
			t.Errorf("IsSubtypeOf(%s, %s) = %v, want %v", tt.t, tt.target, got, tt.want)
		}
	}
}

func TestIsSubtypeOfReflexive(t *testing.T) {
	tt := testTable()
	for _, a := range append(sampleTypes(), AnyReference, AnyArray) {
		if !tt.IsSubtypeOf(a, a) {
			t.Errorf("IsSubtypeOf(%s, %s) = false, want true", a, a)
		}
	}
}

func TestIsSubtypeOfTransitive(t *testing.T) {
	tt := testTable()
	types := []Type{
		Int, Float, Long, Null,
		objectType, tBase, tCircle, tSquare, tShape, tNamed, tString,
		arrayType("[I"), arrayType("[B"), ArrayOf(tCircle), ArrayOf(tBase), ArrayOf(objectType),
		arrayType("[[I"), AnyReference, AnyArray,
	}
	for _, a := range types {
		for _, b := range types {
			if !tt.IsSubtypeOf(a, b) {
				continue
			}
			for _, c := range types {
				if tt.IsSubtypeOf(b, c) && !tt.IsSubtypeOf(a, c) {
					t.Errorf("%s <: %s <: %s but not %s <: %s", a, b, c, a, c)
				}
			}
		}
	}
}

func TestMergeConverges(t *testing.T) {
	tt := testTable()
	inputs := []Type{tSquare, tString, arrayType("[I"), Int, tCircle}
	cur := tCircle
	steps := 0
	for changed := true; changed; {
		changed = false
		for _, in := range inputs {
			next := tt.Merge(cur, in)
			if next != cur {
				if next != Invalid && !tt.IsSubtypeOf(cur, next) {
					t.Fatalf("Merge(%s, %s) = %s moved down the lattice", cur, in, next)
				}
				cur = next
				changed = true
				steps++
			}
		}
		if steps > 10 {
			t.Fatalf("merge did not converge after %d steps", steps)
		}
	}
	if cur != Invalid {
		t.Errorf("fixed point = %s, want %s", cur, Invalid)
	}
}

func TestTypeTableMissing(t *testing.T) {
	tt := testTable()
	tt.IsSubtypeOf(tOrphan, tCircle)
	tt.IsSubtypeOf(tCircle, ObjectType("app/Unknown"))
	tt.IsSubtypeOf(tOrphan, tSquare)

	got := tt.Missing()
	sort.Strings(got)
	want := []string{"app/Orphan", "app/Unknown"}
	if len(got) != len(want) {
		t.Fatalf("Missing() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Missing()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTypeTableDescriptors(t *testing.T) {
	tt := testTable()

	mt, err := tt.Method("(IJ[Lapp/Circle;)Ljava/lang/String;")
	if err != nil {
		t.Fatalf("Method() error = %v", err)
	}
	wantParams := []Type{Int, Long, ArrayOf(tCircle)}
	if len(mt.Params) != len(wantParams) {
		t.Fatalf("len(Params) = %d, want %d", len(mt.Params), len(wantParams))
	}
	for i, p := range wantParams {
		if mt.Params[i] != p {
			t.Errorf("Params[%d] = %s, want %s", i, mt.Params[i], p)
		}
	}
	if mt.Return != tString {
		t.Errorf("Return = %s, want %s", mt.Return, tString)
	}
	again, _ := tt.Method("(IJ[Lapp/Circle;)Ljava/lang/String;")
	if again != mt {
		t.Error("Method() did not return the cached parse")
	}

	for desc, want := range map[string]Type{"Z": Int, "D": Double, "[[J": arrayType("[[J"), "Lapp/Base;": tBase} {
		got, err := tt.Field(desc)
		if err != nil {
			t.Fatalf("Field(%q) error = %v", desc, err)
		}
		if got != want {
			t.Errorf("Field(%q) = %s, want %s", desc, got, want)
		}
	}
	if _, err := tt.Field("Lapp/Base"); err == nil {
		t.Error("Field(unterminated) = nil error, want error")
	}
	if _, err := tt.Method("(V)V"); err == nil {
		t.Error("Method(void param) = nil error, want error")
	}
}

func TestTypeAccessors(t *testing.T) {
	a := arrayType("[[Lapp/Circle;")
	if a.Dimensions() != 2 {
		t.Errorf("Dimensions() = %d, want 2", a.Dimensions())
	}
	if got := a.Elem(); got != ArrayOf(tCircle) {
		t.Errorf("Elem() = %s, want %s", got, ArrayOf(tCircle))
	}
	if got := ArrayOf(tCircle).Elem(); got != tCircle {
		t.Errorf("Elem() = %s, want %s", got, tCircle)
	}
	if !Long.IsWide() || !Double.IsWide() || Int.IsWide() {
		t.Error("IsWide() wrong for primitives")
	}
	if UninitNew("app/Circle", 4).String() != "uninit(app/Circle@4)" {
		t.Errorf("String() = %q", UninitNew("app/Circle", 4).String())
	}
	if ReturnAddress(3).Target() != bytecode.BlockID(3) {
		t.Errorf("Target() = %v, want B3", ReturnAddress(3).Target())
	}
	if !Null.IsReference() || UninitThis("app/Circle").IsReference() {
		t.Error("IsReference() wrong")
	}
}
