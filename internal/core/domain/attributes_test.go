//go:build unit

package domain

import (
	"reflect"
	"testing"
)

func TestPersonalAttributeList_InsertionOrder(t *testing.T) {
	list := NewPersonalAttributeList()
	list.Add(PersonalAttribute{Name: "CurrentFamilyName"})
	list.Add(PersonalAttribute{Name: "PersonIdentifier"})
	list.Add(PersonalAttribute{Name: "DateOfBirth"})

	want := []string{"CurrentFamilyName", "PersonIdentifier", "DateOfBirth"}
	if got := list.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestPersonalAttributeList_AddReplacesInPlace(t *testing.T) {
	list := NewPersonalAttributeList()
	list.Add(PersonalAttribute{Name: "PersonIdentifier"})
	list.Add(PersonalAttribute{Name: "Gender"})
	list.Add(PersonalAttribute{Name: "PersonIdentifier", Values: []string{"SE/NO/1234"}})

	if list.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", list.Len())
	}
	attr, ok := list.Get("PersonIdentifier")
	if !ok {
		t.Fatal("PersonIdentifier not found after replace")
	}
	if len(attr.Values) != 1 || attr.Values[0] != "SE/NO/1234" {
		t.Errorf("replaced attribute values = %v", attr.Values)
	}
	// Replacement keeps the original position.
	if names := list.Names(); names[0] != "PersonIdentifier" {
		t.Errorf("Names()[0] = %q, want PersonIdentifier", names[0])
	}
}

func TestPersonalAttributeList_Remove(t *testing.T) {
	list := NewPersonalAttributeList()
	list.Add(PersonalAttribute{Name: "Gender"})
	list.Add(PersonalAttribute{Name: "CurrentAge"})
	list.Remove("Gender")

	if _, ok := list.Get("Gender"); ok {
		t.Error("Gender still present after Remove")
	}
	if list.Len() != 1 {
		t.Errorf("Len() = %d, want 1", list.Len())
	}
}

func TestParsePersonalAttributeList_RoundTrip(t *testing.T) {
	list := NewPersonalAttributeList()
	list.Add(PersonalAttribute{Name: "PersonIdentifier", Required: true, Values: []string{"SE/NO/1234"}, Status: StatusAvailable})
	list.Add(PersonalAttribute{Name: "CurrentAge", Required: false, Values: []string{"42"}, Status: StatusAvailable})
	list.Add(PersonalAttribute{Name: "Gender", Required: false, Status: StatusNotAvailable})

	parsed, err := ParsePersonalAttributeList(list.String())
	if err != nil {
		t.Fatalf("ParsePersonalAttributeList() error: %v", err)
	}
	if !reflect.DeepEqual(parsed.Names(), list.Names()) {
		t.Errorf("round trip names = %v, want %v", parsed.Names(), list.Names())
	}
	attr, _ := parsed.Get("PersonIdentifier")
	if !attr.Required || attr.Status != StatusAvailable || attr.Values[0] != "SE/NO/1234" {
		t.Errorf("round trip attribute = %+v", attr)
	}
}

func TestParsePersonalAttributeList_Malformed(t *testing.T) {
	for _, input := range []string{"noseparator", ":true:[]:;", "a"} {
		if _, err := ParsePersonalAttributeList(input); err == nil {
			t.Errorf("ParsePersonalAttributeList(%q) expected error", input)
		}
	}
}

func TestParsePersonalAttributeList_Empty(t *testing.T) {
	list, err := ParsePersonalAttributeList("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Len() != 0 {
		t.Errorf("Len() = %d, want 0", list.Len())
	}
}

func TestPersonalAttribute_IsEmpty(t *testing.T) {
	testCases := []struct {
		name string
		attr PersonalAttribute
		want bool
	}{
		{"no values", PersonalAttribute{Name: "Gender"}, true},
		{"simple value", PersonalAttribute{Name: "Gender", Values: []string{"Female"}}, false},
		{"complex value", PersonalAttribute{Name: "CurrentAddress", ComplexValues: []map[string]string{{"PostCode": "12345"}}}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.attr.IsEmpty(); got != tc.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAttributeKindPredicates(t *testing.T) {
	if !IsNaturalPersonAttribute("PersonIdentifier") {
		t.Error("PersonIdentifier should be a natural-person attribute")
	}
	if !IsLegalPersonAttribute("LegalName") {
		t.Error("LegalName should be a legal-person attribute")
	}
	if IsNaturalPersonAttribute("LegalName") {
		t.Error("LegalName is not a natural-person attribute")
	}
	if IsLegalPersonAttribute("bogus") {
		t.Error("unknown name should not be a legal-person attribute")
	}
}

func TestPersonalAttributeList_CloneIsDeep(t *testing.T) {
	list := NewPersonalAttributeList()
	list.Add(PersonalAttribute{Name: "PersonIdentifier", Values: []string{"a"}})

	clone := list.Clone()
	attr, _ := clone.Get("PersonIdentifier")
	attr.Values[0] = "mutated"

	original, _ := list.Get("PersonIdentifier")
	if original.Values[0] != "a" {
		t.Error("Clone shares value storage with the original")
	}
}
