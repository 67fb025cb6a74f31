package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func applyAll(rows ...Row) *Result {
	st := NewState()
	for _, r := range rows {
		st.Apply(r)
	}
	return st.Result()
}

func TestApply_DuplicateAddsAlternateName(t *testing.T) {
	res := applyAll(
		Row{Data: `"Jane Doe" <jane@x.com>`, Origin: "newsletter"},
		Row{Data: "jane@x.com", Origin: "promo", NameFromCSV: "Jane D"},
	)

	require.Len(t, res.Contacts, 1)
	assert.Equal(t, Contact{
		Email:          "jane@x.com",
		Name:           ptr("Jane Doe"),
		AlternateNames: []string{"Jane D"},
		Tags:           []string{"newsletter", "promo"},
	}, res.Contacts[0])
	assert.Equal(t, []DuplicateRecord{{Email: "jane@x.com", Occurrences: 1}}, res.Duplicated)
	assert.Equal(t, []string{"newsletter", "promo"}, res.Tags)
	assert.Equal(t, []string{"jane@x.com"}, res.Emails)
	assert.Empty(t, res.Invalid)
}

func TestApply_InvalidRow(t *testing.T) {
	row := Row{Data: "not-an-email", Origin: "origin1", NameFromCSV: "Someone"}

	st := NewState()
	assert.Equal(t, OutcomeInvalid, st.Apply(row))

	res := st.Result()
	assert.Equal(t, []Row{row}, res.Invalid)
	assert.Equal(t, []string{"not-an-email", "origin1", "Someone"}, res.Invalid[0].Fields())
	assert.Empty(t, res.Contacts)
	assert.Empty(t, res.Tags)
	assert.Empty(t, res.Emails)
}

func TestApply_EmptyDataIsInvalid(t *testing.T) {
	res := applyAll(Row{Data: "", Origin: "origin1"})

	assert.Equal(t, []Row{{Origin: "origin1"}}, res.Invalid)
	assert.Empty(t, res.Contacts)
}

func TestApply_InvalidRowKeptVerbatim(t *testing.T) {
	row := Row{Data: "  nobody here ", Origin: " tag ", NameFromCSV: " Name "}
	res := applyAll(row)

	assert.Equal(t, []Row{row}, res.Invalid)
}

func TestApply_SameNameTwice(t *testing.T) {
	res := applyAll(
		Row{Data: "Jane Doe <jane@x.com>", Origin: "a"},
		Row{Data: "jane doe <jane@x.com>", Origin: "a"},
	)

	require.Len(t, res.Contacts, 1)
	assert.Equal(t, ptr("Jane Doe"), res.Contacts[0].Name)
	assert.Nil(t, res.Contacts[0].AlternateNames)
	assert.Equal(t, []string{"a"}, res.Contacts[0].Tags)
	assert.Equal(t, []DuplicateRecord{{Email: "jane@x.com", Occurrences: 1}}, res.Duplicated)
}

func TestApply_NameFilledOnLaterSighting(t *testing.T) {
	st := NewState()
	assert.Equal(t, OutcomeCreated, st.Apply(Row{Data: "jane@x.com", Origin: "a"}))
	assert.Equal(t, OutcomeDuplicate, st.Apply(Row{Data: "JANE@X.COM", NameFromCSV: "jane"}))

	res := st.Result()
	require.Len(t, res.Contacts, 1)
	assert.Equal(t, ptr("Jane"), res.Contacts[0].Name)
	assert.Nil(t, res.Contacts[0].AlternateNames)
	assert.Equal(t, []string{"a"}, res.Contacts[0].Tags)
}

func TestApply_EmptyOriginOnFirstSighting(t *testing.T) {
	res := applyAll(
		Row{Data: "jane@x.com"},
		Row{Data: "jane@x.com", Origin: "   "},
	)

	require.Len(t, res.Contacts, 1)
	assert.Equal(t, []string{""}, res.Contacts[0].Tags)
	assert.Empty(t, res.Tags)
	assert.Nil(t, res.Contacts[0].Name)
}

func TestApply_OccurrencesCountExtraSightings(t *testing.T) {
	st := NewState()
	for i := 0; i < 4; i++ {
		st.Apply(Row{Data: "a@x.com", Origin: "t"})
	}
	st.Apply(Row{Data: "b@x.com", Origin: "t"})
	st.Apply(Row{Data: "b@x.com", Origin: "u"})

	res := st.Result()
	assert.Equal(t, []DuplicateRecord{
		{Email: "a@x.com", Occurrences: 3},
		{Email: "b@x.com", Occurrences: 1},
	}, res.Duplicated)
	assert.Equal(t, []string{"t", "u"}, res.Tags)
	assert.Equal(t, []string{"t", "u"}, res.Contacts[1].Tags)
	assert.Equal(t, 2, st.Len())
}

func TestApply_AlternateNamesStayUnique(t *testing.T) {
	res := applyAll(
		Row{Data: "a@x.com", NameFromCSV: "Ann Lee"},
		Row{Data: "a@x.com", NameFromCSV: "Annie"},
		Row{Data: "a@x.com", NameFromCSV: "ANNIE"},
		Row{Data: "a@x.com", NameFromCSV: "ann lee"},
		Row{Data: "a@x.com", NameFromCSV: "A. Lee"},
	)

	require.Len(t, res.Contacts, 1)
	assert.Equal(t, ptr("Ann Lee"), res.Contacts[0].Name)
	assert.Equal(t, []string{"Annie", "A. Lee"}, res.Contacts[0].AlternateNames)
	assert.Equal(t, 4, res.Duplicated[0].Occurrences)
}

func TestApply_ExtractedNameBeatsCSVName(t *testing.T) {
	res := applyAll(Row{Data: `"dr. jane doe" <jane@x.com>`, NameFromCSV: "Ignored"})

	require.Len(t, res.Contacts, 1)
	assert.Equal(t, ptr("Dr. Jane Doe"), res.Contacts[0].Name)
}

func TestApply_Invariants(t *testing.T) {
	rows := []Row{
		{Data: "a@x.com", Origin: "one", NameFromCSV: "Ann"},
		{Data: "b@x.com", Origin: "two"},
		{Data: "A@X.COM", Origin: "two", NameFromCSV: "Anna"},
		{Data: "junk", Origin: "three"},
		{Data: "a@x.com", Origin: "one", NameFromCSV: "ann"},
		{Data: "b@x.com", Origin: "", NameFromCSV: "Bo"},
		{Data: "a@x.com", Origin: "four", NameFromCSV: "Anna"},
	}
	res := applyAll(rows...)

	seen := map[string]bool{}
	for _, c := range res.Contacts {
		assert.False(t, seen[c.Email], "duplicate contact %s", c.Email)
		seen[c.Email] = true

		assertUnique(t, c.Tags)
		assertUnique(t, c.AlternateNames)
		if c.Name != nil {
			assert.NotContains(t, c.AlternateNames, *c.Name)
		}
	}
	assertUnique(t, res.Tags)
	assert.Equal(t, []string{"one", "two", "four"}, res.Tags)
	assert.Equal(t, []DuplicateRecord{
		{Email: "a@x.com", Occurrences: 3},
		{Email: "b@x.com", Occurrences: 1},
	}, res.Duplicated)
	assert.Len(t, res.Invalid, 1)
}

func assertUnique(t *testing.T, values []string) {
	t.Helper()
	set := map[string]bool{}
	for _, v := range values {
		assert.False(t, set[v], "repeated value %q", v)
		set[v] = true
	}
}
