package domain

// AttributeCatalog holds the translation tables between a national
// attribute vocabulary and the eIDAS common vocabulary, plus the declared
// attribute derivations and mandatory sets.
// This is a pure domain component with no external dependencies; member
// states inject their own tables at construction.
type AttributeCatalog struct {
	// nationalToCommon maps national attribute names to common names.
	nationalToCommon map[string]string

	// commonToNational is the inverse of nationalToCommon.
	commonToNational map[string]string

	// derivations maps a base attribute name to the name it derives.
	// Derivation is declared, one-directional forward and explicitly
	// reversible backward; it is never computed ad hoc.
	derivations map[string]string

	// derivedFrom is the inverse of derivations.
	derivedFrom map[string]string

	// mandatorySets groups attribute names; at least one member of each
	// set must be present and non-empty for a response to be complete.
	mandatorySets [][]string

	// AllowUnknown permits attributes with no national mapping to pass
	// through NormalizeToCommon unchanged instead of failing.
	AllowUnknown bool
}

// CatalogOption configures an AttributeCatalog.
type CatalogOption func(*AttributeCatalog)

// WithNationalMapping sets the national-to-common name table. The inverse
// table is built automatically.
func WithNationalMapping(nationalToCommon map[string]string) CatalogOption {
	return func(c *AttributeCatalog) {
		c.nationalToCommon = nationalToCommon
		c.commonToNational = make(map[string]string, len(nationalToCommon))
		for nat, common := range nationalToCommon {
			c.commonToNational[common] = nat
		}
	}
}

// WithDerivations sets the declared derivation table (base name to derived
// name). The reverse table is built automatically.
func WithDerivations(derivations map[string]string) CatalogOption {
	return func(c *AttributeCatalog) {
		c.derivations = derivations
		c.derivedFrom = make(map[string]string, len(derivations))
		for base, derived := range derivations {
			c.derivedFrom[derived] = base
		}
	}
}

// WithMandatorySets sets the mandatory attribute sets.
func WithMandatorySets(sets [][]string) CatalogOption {
	return func(c *AttributeCatalog) { c.mandatorySets = sets }
}

// WithAllowUnknown permits unmapped attributes through NormalizeToCommon.
func WithAllowUnknown(allow bool) CatalogOption {
	return func(c *AttributeCatalog) { c.AllowUnknown = allow }
}

// NewAttributeCatalog builds a catalog from options. A catalog with no
// options has empty tables and strict unknown-attribute policy.
func NewAttributeCatalog(opts ...CatalogOption) *AttributeCatalog {
	c := &AttributeCatalog{
		nationalToCommon: map[string]string{},
		commonToNational: map[string]string{},
		derivations:      map[string]string{},
		derivedFrom:      map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultNationalMapping is a representative national vocabulary mapping
// (STORK-era names to eIDAS minimum data set names). Deployments replace
// it with their member state's table.
func DefaultNationalMapping() map[string]string {
	return map[string]string{
		"eIdentifier":          "PersonIdentifier",
		"surname":              "CurrentFamilyName",
		"givenName":            "CurrentGivenName",
		"dateOfBirth":          "DateOfBirth",
		"countryOfBirth":       "PlaceOfBirth",
		"textResidenceAddress": "CurrentAddress",
		"gender":               "Gender",
		"age":                  "CurrentAge",
		"isAgeOver":            "IsAgeOver",
	}
}

// DefaultMandatorySets returns the minimum data sets a resolved response
// must cover. Each slot accepts the natural-person attribute or its
// legal-person counterpart.
func DefaultMandatorySets() [][]string {
	return [][]string{
		{"PersonIdentifier", "LegalPersonIdentifier"},
		{"CurrentFamilyName", "LegalName"},
		{"CurrentGivenName", "LegalName"},
		{"DateOfBirth", "LegalPersonIdentifier"},
	}
}

// DefaultDerivations declares the stock derivations: the age attributes
// are functions of the date of birth.
func DefaultDerivations() map[string]string {
	return map[string]string{
		"DateOfBirth": "CurrentAge",
	}
}

// NormalizeToCommon renames every attribute from the national vocabulary
// to the common one, preserving required flag, values and status. An
// attribute with no mapping fails the whole list with InvalidAttributeList
// unless AllowUnknown is set, in which case it passes through unchanged.
func (c *AttributeCatalog) NormalizeToCommon(list *PersonalAttributeList) (*PersonalAttributeList, error) {
	out := NewPersonalAttributeList()
	for _, attr := range list.All() {
		common, ok := c.nationalToCommon[attr.Name]
		if !ok {
			// Already-common names are accepted as-is.
			if _, known := attributeRegistry[attr.Name]; known {
				out.Add(attr.Clone())
				continue
			}
			if !c.AllowUnknown {
				return nil, NewFault(KindInvalidAttributeList, "attribute %q has no common mapping", attr.Name)
			}
			out.Add(attr.Clone())
			continue
		}
		renamed := attr.Clone()
		renamed.Name = common
		out.Add(renamed)
	}
	return out, nil
}

// NormalizeFromCommon renames every attribute from the common vocabulary
// back to the national one. Unmapped attributes pass through unchanged:
// the common vocabulary is a superset, so this direction is permissive.
func (c *AttributeCatalog) NormalizeFromCommon(list *PersonalAttributeList) *PersonalAttributeList {
	out := NewPersonalAttributeList()
	for _, attr := range list.All() {
		if national, ok := c.commonToNational[attr.Name]; ok {
			renamed := attr.Clone()
			renamed.Name = national
			out.Add(renamed)
			continue
		}
		out.Add(attr.Clone())
	}
	return out
}

// DeriveAttributes applies the declared forward derivations: every
// attribute whose name is a derivation base is renamed to its derived
// name. Attributes without a derivation are untouched.
func (c *AttributeCatalog) DeriveAttributes(list *PersonalAttributeList) *PersonalAttributeList {
	out := NewPersonalAttributeList()
	for _, attr := range list.All() {
		if derived, ok := c.derivations[attr.Name]; ok {
			renamed := attr.Clone()
			renamed.Name = derived
			out.Add(renamed)
			continue
		}
		out.Add(attr.Clone())
	}
	return out
}

// DeriveAttributesBack reverses DeriveAttributes using the declared table.
func (c *AttributeCatalog) DeriveAttributesBack(list *PersonalAttributeList) *PersonalAttributeList {
	out := NewPersonalAttributeList()
	for _, attr := range list.All() {
		if base, ok := c.derivedFrom[attr.Name]; ok {
			renamed := attr.Clone()
			renamed.Name = base
			out.Add(renamed)
			continue
		}
		out.Add(attr.Clone())
	}
	return out
}

// CheckMandatorySets reports whether every mandatory set has at least one
// member present in the list with a non-empty value.
func (c *AttributeCatalog) CheckMandatorySets(list *PersonalAttributeList) bool {
	for _, set := range c.mandatorySets {
		satisfied := false
		for _, name := range set {
			if attr, ok := list.Get(name); ok && !attr.IsEmpty() {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}

// CompareLists reports whether every attribute in modified is present by
// name in original, or is explained by a declared derivation alias in
// either direction. This tolerates legitimate renaming through derivation
// while rejecting attributes the relying party never asked for.
func (c *AttributeCatalog) CompareLists(original, modified *PersonalAttributeList) bool {
	for _, name := range modified.Names() {
		if _, ok := original.Get(name); ok {
			continue
		}
		if base, ok := c.derivedFrom[name]; ok {
			if _, present := original.Get(base); present {
				continue
			}
		}
		if derived, ok := c.derivations[name]; ok {
			if _, present := original.Get(derived); present {
				continue
			}
		}
		return false
	}
	return true
}
