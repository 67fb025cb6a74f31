package importer

import (
	"slices"
	"strings"
)

// Contact is one deduplicated address and what the import learned about it.
type Contact struct {
	Email          string   `json:"email" yaml:"email" toml:"email"`
	Name           *string  `json:"name" yaml:"name" toml:"name"`
	AlternateNames []string `json:"alternateNames" yaml:"alternateNames" toml:"alternateNames"`
	Tags           []string `json:"tags" yaml:"tags" toml:"tags"`
}

// DuplicateRecord counts the sightings of an email beyond the first.
type DuplicateRecord struct {
	Email       string `json:"email" yaml:"email" toml:"email"`
	Occurrences int    `json:"occurrences" yaml:"occurrences" toml:"occurrences"`
}

// Result holds the output collections of a finished run.
type Result struct {
	Contacts   []Contact         `json:"contacts" yaml:"contacts" toml:"contacts"`
	Emails     []string          `json:"emails" yaml:"emails" toml:"emails"`
	Duplicated []DuplicateRecord `json:"duplicated" yaml:"duplicated" toml:"duplicated"`
	Invalid    []Row             `json:"invalid" yaml:"invalid" toml:"invalid"`
	Tags       []string          `json:"tags" yaml:"tags" toml:"tags"`
}

// Outcome classifies what Apply did with a row.
type Outcome int

const (
	OutcomeInvalid Outcome = iota
	OutcomeCreated
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "invalid"
	}
}

// State is the running merge of one import. It belongs to a single caller
// and is not safe for concurrent use; rows must be applied in input order.
type State struct {
	res Result

	contactIdx   map[string]int
	duplicateIdx map[string]int
	tagSet       map[string]struct{}
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		res: Result{
			Contacts:   []Contact{},
			Emails:     []string{},
			Duplicated: []DuplicateRecord{},
			Invalid:    []Row{},
			Tags:       []string{},
		},
		contactIdx:   make(map[string]int),
		duplicateIdx: make(map[string]int),
		tagSet:       make(map[string]struct{}),
	}
}

// Apply folds one row into the state.
func (s *State) Apply(row Row) Outcome {
	data := strings.TrimSpace(row.Data)

	email, ok := ExtractEmail(data)
	if !ok {
		s.res.Invalid = append(s.res.Invalid, row)
		return OutcomeInvalid
	}

	extracted, _ := ExtractName(data)
	name, hasName := ResolveName(extracted, row.NameFromCSV)

	origin := strings.TrimSpace(row.Origin)
	s.addTag(origin)

	pos, seen := s.contactIdx[email]
	if !seen {
		c := Contact{
			Email: email,
			// An empty origin is kept on first sighting.
			Tags: []string{origin},
		}
		if hasName {
			capitalized := Capitalize(name)
			c.Name = &capitalized
		}
		s.contactIdx[email] = len(s.res.Contacts)
		s.res.Contacts = append(s.res.Contacts, c)
		s.res.Emails = append(s.res.Emails, email)
		return OutcomeCreated
	}

	s.registerDuplicate(email)

	c := &s.res.Contacts[pos]
	if hasName {
		s.mergeName(c, Capitalize(name))
	}
	if origin != "" && !slices.Contains(c.Tags, origin) {
		c.Tags = append(c.Tags, origin)
	}
	return OutcomeDuplicate
}

// mergeName records name on c: as the primary name when c has none,
// otherwise as a new alternate.
func (s *State) mergeName(c *Contact, name string) {
	if c.Name != nil && *c.Name == name {
		return
	}
	if slices.Contains(c.AlternateNames, name) {
		return
	}
	if c.Name == nil {
		c.Name = &name
		return
	}
	c.AlternateNames = append(c.AlternateNames, name)
}

func (s *State) registerDuplicate(email string) {
	if i, ok := s.duplicateIdx[email]; ok {
		s.res.Duplicated[i].Occurrences++
		return
	}
	s.duplicateIdx[email] = len(s.res.Duplicated)
	s.res.Duplicated = append(s.res.Duplicated, DuplicateRecord{Email: email, Occurrences: 1})
}

func (s *State) addTag(tag string) {
	if tag == "" {
		return
	}
	if _, ok := s.tagSet[tag]; ok {
		return
	}
	s.tagSet[tag] = struct{}{}
	s.res.Tags = append(s.res.Tags, tag)
}

// Len returns the number of distinct contacts so far.
func (s *State) Len() int {
	return len(s.res.Contacts)
}

// Result returns the collections accumulated so far. Call it once the row
// source is exhausted; the State must not be used afterwards.
func (s *State) Result() *Result {
	res := s.res
	return &res
}
