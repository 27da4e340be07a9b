package schema

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	require.Equal(t, 4, reg.Len())

	names := []string{}
	for i, s := range reg.Steps() {
		assert.Equal(t, i, s.Index)
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"profile", "education", "eligibility", "preferences"}, names)

	profile, err := reg.Step(0)
	require.NoError(t, err)
	assert.True(t, profile.Skippable)
	loc, ok := profile.Field("location")
	require.True(t, ok)
	assert.Equal(t, SingleSelect, loc.Kind)
	assert.Len(t, loc.Options, 10)
	assert.True(t, loc.Searchable)

	elig, err := reg.Step(2)
	require.NoError(t, err)
	require.NotNil(t, elig.Scores)
	assert.Equal(t, "percentage", elig.Scores.Percentage)

	pref, err := reg.Step(3)
	require.NoError(t, err)
	assert.False(t, pref.Skippable)
}

func TestRegistryStepOutOfRange(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	for _, idx := range []int{-1, reg.Len(), 99} {
		_, err := reg.Step(idx)
		var oor *OutOfRangeError
		require.True(t, errors.As(err, &oor), "index %d", idx)
		assert.Equal(t, idx, oor.Index)
		assert.Equal(t, reg.Len(), oor.Len)
	}
}

func TestOfferedOptionsFollowParentSelection(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	pref, _ := reg.Step(3)
	choices, _ := pref.Field("admissionChoices")

	assert.Empty(t, pref.OfferedOptions(choices, nil))
	assert.Equal(t, []string{"B.Sc.", "M.Sc.", "BBA", "MBA"},
		pref.OfferedOptions(choices, []string{"Business", "Science"}))
}

func TestLoadFSRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name  string
		files fstest.MapFS
	}{
		{
			name:  "missing index",
			files: fstest.MapFS{},
		},
		{
			name: "empty index",
			files: fstest.MapFS{
				"steps.yaml": {Data: []byte("steps: []\n")},
			},
		},
		{
			name: "unknown yaml field",
			files: fstest.MapFS{
				"steps.yaml":   {Data: []byte("steps: [a.yaml]\n")},
				"steps/a.yaml": {Data: []byte("name: a\ncolour: red\n")},
			},
		},
		{
			name: "duplicate keys",
			files: fstest.MapFS{
				"steps.yaml":   {Data: []byte("steps: [a.yaml]\n")},
				"steps/a.yaml": {Data: []byte("name: a\nfields:\n  - {key: x, type: text}\n  - {key: x, type: number}\n")},
			},
		},
		{
			name: "select without options",
			files: fstest.MapFS{
				"steps.yaml":   {Data: []byte("steps: [a.yaml]\n")},
				"steps/a.yaml": {Data: []byte("name: a\nfields:\n  - {key: x, type: select}\n")},
			},
		},
		{
			name: "unknown options_ref",
			files: fstest.MapFS{
				"steps.yaml":   {Data: []byte("steps: [a.yaml]\n")},
				"steps/a.yaml": {Data: []byte("name: a\nfields:\n  - {key: x, type: select, options_ref: nope}\n")},
			},
		},
		{
			name: "unknown type",
			files: fstest.MapFS{
				"steps.yaml":   {Data: []byte("steps: [a.yaml]\n")},
				"steps/a.yaml": {Data: []byte("name: a\nfields:\n  - {key: x, type: slider}\n")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFS(tt.files)
			assert.Error(t, err)
		})
	}
}

func TestLoadFSResolvesOptionLists(t *testing.T) {
	files := fstest.MapFS{
		"steps.yaml":         {Data: []byte("steps: [a.yaml]\n")},
		"options/sizes.yaml": {Data: []byte("options: [s, m, l]\n")},
		"steps/a.yaml":       {Data: []byte("name: a\nfields:\n  - {key: size, type: select, options_ref: sizes, required: true}\n")},
	}
	reg, err := LoadFS(files)
	require.NoError(t, err)

	f, step, ok := reg.Field("size")
	require.True(t, ok)
	assert.Equal(t, "a", step.Name)
	assert.Equal(t, []string{"s", "m", "l"}, f.Options)
}

func TestFilterOptions(t *testing.T) {
	cities := []string{"New York", "Los Angeles", "San Antonio", "San Diego", "San Jose"}

	assert.Equal(t, cities, FilterOptions(cities, ""))
	assert.Equal(t, []string{"New York"}, FilterOptions(cities, "york"))

	san := FilterOptions(cities, "san")
	for _, c := range []string{"San Antonio", "San Diego", "San Jose"} {
		assert.Contains(t, san, c)
	}
	assert.NotContains(t, san, "New York")
}

func TestParseKind(t *testing.T) {
	for k, name := range kindNames {
		got, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("dropdown")
	assert.Error(t, err)
}
