package patent

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := NewDate(2020, time.March, 1)
	for _, s := range []string{"2020-03-01", "20200301", "2020/03/01", "2020年3月1日", "2020-03-01T09:00:00+09:00", " 2020-03-01 "} {
		assert.Equal(t, want, ParseDate(s), s)
	}
	assert.False(t, ParseDate("").Valid())
	assert.False(t, ParseDate("soon").Valid())
	assert.Equal(t, 0, ParseDate("").Year())
}

func TestDate_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Date `json:"a"`
		B Date `json:"b"`
	}{A: NewDate(2021, time.May, 4)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"2021-05-04","b":null}`, string(b))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"20210504"`), &d))
	assert.Equal(t, "2021-05-04", d.String())
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.False(t, d.Valid())
}

func TestDate_DaysUntil(t *testing.T) {
	days, ok := NewDate(2020, time.January, 1).DaysUntil(NewDate(2021, time.January, 1))
	assert.True(t, ok)
	assert.Equal(t, 366, days)

	_, ok = NewDate(2020, time.January, 1).DaysUntil(Date{})
	assert.False(t, ok)
}

func TestNewClaim_InfersDependencies(t *testing.T) {
	c := NewClaim(1, "A sensor comprising a housing.")
	assert.Equal(t, ClaimTypeIndependent, c.Type)
	assert.Empty(t, c.DependsOn)

	c = NewClaim(4, "The sensor according to claims 1 to 3, wherein ...")
	assert.Equal(t, ClaimTypeDependent, c.Type)
	assert.Equal(t, []int{1, 2, 3}, c.DependsOn)

	c = NewClaim(3, "請求項１又は請求項２に記載のセンサ。")
	assert.Equal(t, []int{1, 2}, c.DependsOn)

	// Forward references are ignored.
	c = NewClaim(2, "The method of claim 5.")
	assert.Equal(t, ClaimTypeIndependent, c.Type)
}

func TestClaimSet(t *testing.T) {
	cs := ClaimSet{
		NewClaim(3, "The sensor of claim 1."),
		NewClaim(1, "A sensor."),
		NewClaim(2, "A method."),
	}
	cs.Sort()
	assert.Equal(t, 1, cs[0].Number)
	assert.Len(t, cs.IndependentClaims(), 2)
	deps := cs.DependentClaimsOf(1)
	require.Len(t, deps, 1)
	assert.Equal(t, 3, deps[0].Number)

	c, ok := cs.FindByNumber(2)
	require.True(t, ok)
	assert.Equal(t, "A method.", c.Text)
	_, ok = cs.FindByNumber(9)
	assert.False(t, ok)
}

func TestPatent_Collections(t *testing.T) {
	p := New("2020-000001")
	p.Applicants = append(p.Applicants, Party{Name: "Acme Corp"}, Party{Name: "Beta Inc"})
	p.AddClassification("G06F 16/00", "")
	p.AddClassification("g06f 16/00", "")
	p.AddClassification("H04L 9/00", "custom")
	p.AddClassification("???", "")

	require.Len(t, p.Classifications, 3)
	assert.Equal(t, "Electric Digital Data Processing", p.Classifications[0].Description)
	assert.Equal(t, "custom", p.Classifications[1].Description)
	assert.Equal(t, []string{"G06F", "H04L", "Unclassified"}, p.Subclasses())
	assert.True(t, p.HasApplicant("acme"))
	assert.False(t, p.HasApplicant("gamma"))
	assert.Equal(t, []string{"Acme Corp", "Beta Inc"}, p.ApplicantNames())

	b, err := json.Marshal(New("x"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"claims":[]`)
	assert.Contains(t, string(b), `"application_date":null`)
}
