package dissector

import (
	"context"
	"errors"
	"iter"
	"slices"
	"testing"
)

func noSelect(ctx context.Context, root string) iter.Seq[string] {
	return func(yield func(string) bool) {}
}

func noDissect(ctx context.Context, dc *Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {}
}

func testDissector(slug string, tags ...Tag) *Dissector {
	return New(Config{
		Slug:    slug,
		Tags:    tags,
		Columns: Schema{{Name: "value", Type: TypeString}},
		Select:  noSelect,
		Dissect: noDissect,
	})
}

func TestRegistry_DeclarationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, slug := range []string{"gamma", "alpha", "beta"} {
		reg.MustRegister(testDissector(slug))
	}

	var got []string
	for _, d := range reg.All() {
		got = append(got, d.Slug())
	}
	want := []string{"gamma", "alpha", "beta"}
	if !slices.Equal(got, want) {
		t.Errorf("All() = %v, want %v", got, want)
	}
	if reg.Len() != 3 {
		t.Errorf("Len() = %d, want 3", reg.Len())
	}
	if _, ok := reg.Lookup("alpha"); !ok {
		t.Error("Lookup(alpha) not found")
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(testDissector("alpha"))

	err := reg.Register(testDissector("alpha"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Register duplicate: got %v, want ErrDuplicate", err)
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d after duplicate, want 1", reg.Len())
	}

	defer func() {
		if recover() == nil {
			t.Error("MustRegister duplicate did not panic")
		}
	}()
	reg.MustRegister(testDissector("alpha"))
}

func TestNew_InvalidSchemaPanics(t *testing.T) {
	tests := []struct {
		name    string
		columns Schema
	}{
		{"empty", nil},
		{"duplicate", Schema{{Name: "a", Type: TypeString}, {Name: "a", Type: TypeInt}}},
		{"unknown type", Schema{{Name: "a", Type: "blob"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("New with %s schema did not panic", tt.name)
				}
			}()
			New(Config{Slug: "x", Columns: tt.columns, Select: noSelect, Dissect: noDissect})
		})
	}
}

func TestDissector_Immutable(t *testing.T) {
	d := testDissector("alpha", TagLinux, TagGeneric, TagLinux)

	tags := d.Tags()
	if !slices.Equal(tags, []Tag{TagGeneric, TagLinux}) {
		t.Errorf("Tags() = %v, want sorted unique tags", tags)
	}
	tags[0] = TagWindows
	if d.HasTag(TagWindows) {
		t.Error("mutating Tags() result changed the descriptor")
	}

	schema := d.Schema()
	schema[0].Name = "changed"
	if d.Schema()[0].Name != "value" {
		t.Error("mutating Schema() result changed the descriptor")
	}
	if got := d.ErrorSchema().Names(); !slices.Equal(got, []string{"dissector", "source", "message"}) {
		t.Errorf("ErrorSchema().Names() = %v", got)
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    DataType
		wantErr bool
	}{
		{"str", TypeString, false},
		{"String", TypeString, false},
		{"int", TypeInt, false},
		{"integer", TypeInt, false},
		{"float", TypeFloat, false},
		{"bool", TypeBool, false},
		{"inet", TypeInet, false},
		{"ip", TypeInet, false},
		{"blob", "", true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
