package lua

import (
	"reflect"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

type stringer string

func (s stringer) String() string { return "S:" + string(s) }

func TestToGoValue(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	if err := L.DoString(`
		arr = {"a", "b", 3}
		map = {name = "box", x = 1.5, visible = true}
		mixed = {1, 2, key = "v"}
	`); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		in   glua.LValue
		want any
	}{
		{"nil", glua.LNil, nil},
		{"bool", glua.LTrue, true},
		{"int", glua.LNumber(4), int64(4)},
		{"float", glua.LNumber(1.25), 1.25},
		{"string", glua.LString("x"), "x"},
		{"array", L.GetGlobal("arr"), []any{"a", "b", int64(3)}},
		{"map", L.GetGlobal("map"), map[string]any{"name": "box", "x": 1.5, "visible": true}},
		{"mixed", L.GetGlobal("mixed"), map[string]any{"1": int64(1), "2": int64(2), "key": "v"}},
		{"function", L.NewFunction(func(*glua.LState) int { return 0 }), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToGoValue(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToGoValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestToGoValueCycle(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	if err := L.DoString(`c = {name = "loop"}; c.self = c`); err != nil {
		t.Fatal(err)
	}
	got, ok := ToGoValue(L.GetGlobal("c")).(map[string]any)
	if !ok {
		t.Fatalf("ToGoValue() = %T, want map", got)
	}
	if got["self"] != nil {
		t.Errorf("cyclic reference = %v, want nil", got["self"])
	}
}

func TestToLuaValue(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "nil"},
		{"bool", true, "true"},
		{"int", 7, "7"},
		{"float", 2.5, "2.5"},
		{"string", "hi", "hi"},
		{"stringer", stringer("a"), "S:a"},
		{"unsupported", struct{}{}, "nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToLuaValue(L, tt.in).String(); got != tt.want {
				t.Errorf("ToLuaValue() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestToLuaValueRoundTrip(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	in := map[string]any{
		"names": []string{"a", "b"},
		"tags":  map[string]string{"k": "v"},
		"n":     3,
	}
	want := map[string]any{
		"names": []any{"a", "b"},
		"tags":  map[string]any{"k": "v"},
		"n":     int64(3),
	}

	if got := ToGoValue(ToLuaValue(L, in)); !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %#v, want %#v", got, want)
	}
}
