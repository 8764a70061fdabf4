package domain

import (
	"fmt"
	"strings"
)

// AttributeStatus describes the resolution state of a personal attribute
// after the identity-provider side has processed it.
type AttributeStatus string

const (
	// StatusAvailable means the attribute was resolved with at least one value.
	StatusAvailable AttributeStatus = "Available"

	// StatusNotAvailable means the identity provider could not resolve the attribute.
	StatusNotAvailable AttributeStatus = "NotAvailable"

	// StatusWithheld means the citizen refused consent for this attribute.
	StatusWithheld AttributeStatus = "Withheld"

	// StatusNone is the zero status of an attribute that has not been processed.
	StatusNone AttributeStatus = ""
)

// PersonalAttribute is a single citizen attribute in either the national or
// the eIDAS (common) vocabulary.
// This is the core domain model - it has no external dependencies.
type PersonalAttribute struct {
	// Name is the attribute name, national or common depending on which
	// side of normalization the list is on.
	Name string

	// FriendlyName is an optional short name carried on the wire.
	FriendlyName string

	// Required marks the attribute as mandatory for the relying party.
	Required bool

	// Values holds simple string values in the order they were asserted.
	Values []string

	// ComplexValues holds structured values (e.g. current address) in
	// assertion order. An attribute carries simple or complex values,
	// never both.
	ComplexValues []map[string]string

	// Status is the resolution status reported by the remote side.
	Status AttributeStatus
}

// IsEmpty reports whether the attribute carries no values at all.
func (a *PersonalAttribute) IsEmpty() bool {
	return len(a.Values) == 0 && len(a.ComplexValues) == 0
}

// Clone returns a deep copy of the attribute.
func (a *PersonalAttribute) Clone() PersonalAttribute {
	c := PersonalAttribute{
		Name:         a.Name,
		FriendlyName: a.FriendlyName,
		Required:     a.Required,
		Status:       a.Status,
	}
	if len(a.Values) > 0 {
		c.Values = append([]string(nil), a.Values...)
	}
	for _, cv := range a.ComplexValues {
		m := make(map[string]string, len(cv))
		for k, v := range cv {
			m[k] = v
		}
		c.ComplexValues = append(c.ComplexValues, m)
	}
	return c
}

// attributeKind classifies registry entries.
type attributeKind int

const (
	kindNaturalPerson attributeKind = iota
	kindLegalPerson
)

// attributeRegistry maps common-vocabulary attribute names to their person
// classification. This is the eIDAS minimum data set for natural and legal
// persons plus the derived age attributes.
var attributeRegistry = map[string]attributeKind{
	// Natural person
	"PersonIdentifier":  kindNaturalPerson,
	"CurrentFamilyName": kindNaturalPerson,
	"CurrentGivenName":  kindNaturalPerson,
	"DateOfBirth":       kindNaturalPerson,
	"BirthName":         kindNaturalPerson,
	"PlaceOfBirth":      kindNaturalPerson,
	"CurrentAddress":    kindNaturalPerson,
	"Gender":            kindNaturalPerson,
	"CurrentAge":        kindNaturalPerson,
	"IsAgeOver":         kindNaturalPerson,

	// Legal person
	"LegalPersonIdentifier":  kindLegalPerson,
	"LegalName":              kindLegalPerson,
	"LegalAddress":           kindLegalPerson,
	"VATRegistration":        kindLegalPerson,
	"TaxReference":           kindLegalPerson,
	"LEI":                    kindLegalPerson,
	"EORI":                   kindLegalPerson,
	"SEED":                   kindLegalPerson,
	"SIC":                    kindLegalPerson,
	"D-2012-17-EUIdentifier": kindLegalPerson,
}

// IsNaturalPersonAttribute reports whether name is a natural-person
// attribute of the common vocabulary.
// This is a pure function with no side effects or I/O.
func IsNaturalPersonAttribute(name string) bool {
	k, ok := attributeRegistry[name]
	return ok && k == kindNaturalPerson
}

// IsLegalPersonAttribute reports whether name is a legal-person attribute
// of the common vocabulary.
func IsLegalPersonAttribute(name string) bool {
	k, ok := attributeRegistry[name]
	return ok && k == kindLegalPerson
}

// PersonalAttributeList is an attribute collection keyed by name that
// preserves insertion order. Order matters: the outbound serialization is
// covered by an XML signature, so iteration must be deterministic.
type PersonalAttributeList struct {
	names  []string
	byName map[string]*PersonalAttribute
}

// NewPersonalAttributeList returns an empty list.
func NewPersonalAttributeList() *PersonalAttributeList {
	return &PersonalAttributeList{byName: make(map[string]*PersonalAttribute)}
}

// Add inserts or replaces the attribute under its name. Insertion order is
// kept for new names; replacing keeps the original position.
func (l *PersonalAttributeList) Add(attr PersonalAttribute) {
	if l.byName == nil {
		l.byName = make(map[string]*PersonalAttribute)
	}
	if _, exists := l.byName[attr.Name]; !exists {
		l.names = append(l.names, attr.Name)
	}
	a := attr
	l.byName[attr.Name] = &a
}

// Get returns the attribute for name, or false if absent.
func (l *PersonalAttributeList) Get(name string) (PersonalAttribute, bool) {
	if a, ok := l.byName[name]; ok {
		return *a, true
	}
	return PersonalAttribute{}, false
}

// Remove deletes the attribute for name if present.
func (l *PersonalAttributeList) Remove(name string) {
	if _, ok := l.byName[name]; !ok {
		return
	}
	delete(l.byName, name)
	for i, n := range l.names {
		if n == name {
			l.names = append(l.names[:i], l.names[i+1:]...)
			break
		}
	}
}

// Names returns the attribute names in insertion order.
func (l *PersonalAttributeList) Names() []string {
	return append([]string(nil), l.names...)
}

// Len returns the number of attributes.
func (l *PersonalAttributeList) Len() int {
	return len(l.names)
}

// All returns the attributes in insertion order.
func (l *PersonalAttributeList) All() []PersonalAttribute {
	out := make([]PersonalAttribute, 0, len(l.names))
	for _, n := range l.names {
		out = append(out, *l.byName[n])
	}
	return out
}

// Clone returns a deep copy of the list.
func (l *PersonalAttributeList) Clone() *PersonalAttributeList {
	c := NewPersonalAttributeList()
	for _, a := range l.All() {
		c.Add(a.Clone())
	}
	return c
}

// String renders the list in the semicolon-separated wire form used by the
// side-channel attribute-list parameter:
//
//	name:required:[v1,v2]:Status;
func (l *PersonalAttributeList) String() string {
	var b strings.Builder
	for _, a := range l.All() {
		fmt.Fprintf(&b, "%s:%t:[%s]:%s;", a.Name, a.Required, strings.Join(a.Values, ","), a.Status)
	}
	return b.String()
}

// ParsePersonalAttributeList parses the wire form produced by String.
// Empty input yields an empty list.
func ParsePersonalAttributeList(s string) (*PersonalAttributeList, error) {
	list := NewPersonalAttributeList()
	s = strings.TrimSpace(s)
	if s == "" {
		return list, nil
	}
	for _, tuple := range strings.Split(strings.TrimSuffix(s, ";"), ";") {
		attr, err := parseAttributeTuple(tuple)
		if err != nil {
			return nil, err
		}
		list.Add(attr)
	}
	return list, nil
}

func parseAttributeTuple(tuple string) (PersonalAttribute, error) {
	parts := strings.SplitN(tuple, ":", 4)
	if len(parts) < 2 {
		return PersonalAttribute{}, fmt.Errorf("malformed attribute tuple %q", tuple)
	}
	attr := PersonalAttribute{Name: parts[0], Required: parts[1] == "true"}
	if attr.Name == "" {
		return PersonalAttribute{}, fmt.Errorf("attribute tuple %q has empty name", tuple)
	}
	if len(parts) >= 3 {
		vals := strings.TrimSuffix(strings.TrimPrefix(parts[2], "["), "]")
		if vals != "" {
			attr.Values = strings.Split(vals, ",")
		}
	}
	if len(parts) == 4 {
		attr.Status = AttributeStatus(parts[3])
	}
	return attr, nil
}
