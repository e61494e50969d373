package repository

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildFilter_Empty(t *testing.T) {
	r := &mongoAppointmentRepository{}

	filter := r.buildFilter("", nil)
	if len(filter) != 0 {
		t.Errorf("empty filters produced %v, want empty document", filter)
	}
}

func TestBuildFilter_NamePattern(t *testing.T) {
	r := &mongoAppointmentRepository{}

	filter := r.buildFilter("Jane", nil)
	name, ok := filter["patient_name"].(bson.M)
	if !ok {
		t.Fatalf("patient_name filter = %v, want bson.M", filter["patient_name"])
	}
	if name["$regex"] != "Jane" {
		t.Errorf("$regex = %v, want Jane", name["$regex"])
	}
	if name["$options"] != "i" {
		t.Errorf("$options = %v, want i (case-insensitive)", name["$options"])
	}
	if _, present := filter["age"]; present {
		t.Error("age filter present without an age")
	}
}

func TestBuildFilter_EscapesRegexMetacharacters(t *testing.T) {
	r := &mongoAppointmentRepository{}

	filter := r.buildFilter("O.Brien (Jr)", nil)
	name := filter["patient_name"].(bson.M)
	if got := name["$regex"]; got != `O\.Brien \(Jr\)` {
		t.Errorf("$regex = %q, want %q", got, `O\.Brien \(Jr\)`)
	}
}

func TestBuildFilter_Age(t *testing.T) {
	r := &mongoAppointmentRepository{}
	age := 42

	filter := r.buildFilter("", &age)
	if filter["age"] != 42 {
		t.Errorf("age filter = %v, want 42", filter["age"])
	}

	filter = r.buildFilter("Doe", &age)
	if len(filter) != 2 {
		t.Errorf("combined filter has %d fields, want 2", len(filter))
	}
}

func TestEscapeRegexSpecialChars(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain name", "plain name"},
		{".*+?", `\.\*\+\?`},
		{"^$()[]{}|", `\^\$\(\)\[\]\{\}\|`},
		{`back\slash`, `back\\slash`},
		{"", ""},
	}
	for _, tc := range cases {
		if got := escapeRegexSpecialChars(tc.in); got != tc.want {
			t.Errorf("escapeRegexSpecialChars(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
