package eidasnode

import (
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
)

// Re-export the attribute domain model.
type (
	PersonalAttribute     = domain.PersonalAttribute
	PersonalAttributeList = domain.PersonalAttributeList
	AttributeStatus       = domain.AttributeStatus
	AttributeCatalog      = domain.AttributeCatalog
	CatalogOption         = domain.CatalogOption
	LevelOfAssurance      = domain.LevelOfAssurance
	LoAComparison         = domain.LoAComparison
)

const (
	StatusAvailable    = domain.StatusAvailable
	StatusNotAvailable = domain.StatusNotAvailable
	StatusWithheld     = domain.StatusWithheld

	LoALow         = domain.LoALow
	LoASubstantial = domain.LoASubstantial
	LoAHigh        = domain.LoAHigh

	ComparisonMinimum = domain.ComparisonMinimum
	ComparisonExact   = domain.ComparisonExact
)

var (
	NewPersonalAttributeList   = domain.NewPersonalAttributeList
	ParsePersonalAttributeList = domain.ParsePersonalAttributeList
	NewAttributeCatalog        = domain.NewAttributeCatalog
	WithNationalMapping        = domain.WithNationalMapping
	WithDerivations            = domain.WithDerivations
	WithMandatorySets          = domain.WithMandatorySets
	WithAllowUnknown           = domain.WithAllowUnknown
	DefaultNationalMapping     = domain.DefaultNationalMapping
	DefaultDerivations         = domain.DefaultDerivations
	DefaultMandatorySets       = domain.DefaultMandatorySets
	ParseLevelOfAssurance      = domain.ParseLevelOfAssurance
	IsNaturalPersonAttribute   = domain.IsNaturalPersonAttribute
	IsLegalPersonAttribute     = domain.IsLegalPersonAttribute
)
