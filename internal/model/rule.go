package model

// RuleKind distinguishes rules that select publications from rules that
// remove them. Exclusion takes strict precedence over inclusion.
type RuleKind string

const (
	KindInclude RuleKind = "include"
	KindExclude RuleKind = "exclude"
)

// Valid reports whether k is a known rule kind.
func (k RuleKind) Valid() bool {
	return k == KindInclude || k == KindExclude
}

// SearchRule is a named filter predicate. A rule matches a publication iff
// every populated criterion is satisfied; unset criteria are wildcards.
type SearchRule struct {
	ID       string       `yaml:"id" json:"id"`
	Name     string       `yaml:"name" json:"name"`
	Kind     RuleKind     `yaml:"kind" json:"kind"`
	Enabled  bool         `yaml:"enabled" json:"enabled"`
	Criteria RuleCriteria `yaml:"criteria" json:"criteria"`
}

// RuleCriteria is the fixed schema of optional match fields. The zero value
// of each field marks it as unpopulated (wildcard); StartDate uses a pointer
// so an explicit date is distinguishable from no date.
type RuleCriteria struct {
	OABNumber     string `yaml:"oabNumber,omitempty" json:"oabNumber,omitempty"`
	OABState      string `yaml:"oabState,omitempty" json:"oabState,omitempty"`
	LawyerName    string `yaml:"lawyerName,omitempty" json:"lawyerName,omitempty"`
	PartyName     string `yaml:"partyName,omitempty" json:"partyName,omitempty"`
	ProcessNumber string `yaml:"processNumber,omitempty" json:"processNumber,omitempty"`
	TribunalCode  string `yaml:"tribunalCode,omitempty" json:"tribunalCode,omitempty"`
	DocumentType  string `yaml:"documentType,omitempty" json:"documentType,omitempty"`
	ClassName     string `yaml:"className,omitempty" json:"className,omitempty"`
	BodyName      string `yaml:"bodyName,omitempty" json:"bodyName,omitempty"`
	StartDate     *Date  `yaml:"startDate,omitempty" json:"startDate,omitempty"`
}

// Empty reports whether no criterion is populated. A rule with empty criteria
// would match everything and is rejected by validation.
func (c RuleCriteria) Empty() bool {
	return c.OABNumber == "" &&
		c.OABState == "" &&
		c.LawyerName == "" &&
		c.PartyName == "" &&
		c.ProcessNumber == "" &&
		c.TribunalCode == "" &&
		c.DocumentType == "" &&
		c.ClassName == "" &&
		c.BodyName == "" &&
		c.StartDate == nil
}
