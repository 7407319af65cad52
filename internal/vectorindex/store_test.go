package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(id string, vec []float32) Row {
	return Row{ID: id, Content: "content of " + id, Vector: vec, Metadata: Metadata{Partition: "project", Authority: 0.5}}
}

func TestCreateCollectionIdempotent(t *testing.T) {
	s := New()
	s.CreateCollection("code")
	s.CreateCollection("code")
	require.NoError(t, s.Add("code", []Row{row("a", []float32{1, 0, 0})}))
	assert.Equal(t, 1, s.Count("code"))
}

func TestAddAndSearchOrdering(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("code", []Row{
		row("exact", []float32{1, 0, 0}),
		row("near", []float32{0.9, 0.1, 0}),
		row("far", []float32{0, 0, 1}),
	}))

	results, err := s.Search("code", []float32{1, 0, 0}, 3, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "exact", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestSearchThresholdFilters(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("code", []Row{
		row("aligned", []float32{1, 0}),
		row("orthogonal", []float32{0, 1}),
	}))

	results, err := s.Search("code", []float32{1, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "aligned", results[0].ID)
}

func TestAddReplacesSameID(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("code", []Row{row("a", []float32{1, 0})}))
	require.NoError(t, s.Add("code", []Row{row("a", []float32{0, 1})}))

	assert.Equal(t, 1, s.Count("code"))
	results, err := s.Search("code", []float32{0, 1}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestDimensionMismatchFatal(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("code", []Row{row("a", []float32{1, 0, 0})}))
	assert.Error(t, s.Add("code", []Row{row("b", []float32{1, 0})}))

	_, err := s.Search("code", []float32{1, 0}, 1, 0)
	assert.Error(t, err)
}

func TestRemoveHidesRow(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("code", []Row{
		row("a", []float32{1, 0}),
		row("b", []float32{0.9, 0.1}),
	}))
	s.Remove("code", []string{"a"})

	assert.False(t, s.Contains("code", "a"))
	results, err := s.Search("code", []float32{1, 0}, 5, 0)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a", r.ID)
	}
}

func TestSearchUnknownCollection(t *testing.T) {
	s := New()
	results, err := s.Search("missing", []float32{1}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDrop(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("code", []Row{row("a", []float32{1, 0})}))
	s.Drop("code")
	assert.Equal(t, 0, s.Count("code"))
	s.Drop("code") // idempotent
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := New()
	require.NoError(t, s.Add("code", []Row{
		{ID: "a", Content: "alpha", Vector: []float32{1, 0}, Metadata: Metadata{Partition: "dom0", Authority: 1.0, ContentHash: "h1"}},
		{ID: "b", Content: "beta", Vector: []float32{0, 1}, Metadata: Metadata{Partition: "third_party", Authority: 0.3, ContentHash: "h2"}},
	}))
	require.NoError(t, s.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Count("code"))

	results, err := loaded.Search("code", []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "dom0", results[0].Metadata.Partition)
	assert.Equal(t, "alpha", results[0].Content)
}

func TestLoadMissingDirIsEmpty(t *testing.T) {
	loaded, err := Load(t.TempDir() + "/nope")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Count("code"))
}
