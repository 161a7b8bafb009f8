package gazetteer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bingham Canyon Mine", "bingham canyon mine"},
		{"  Red   Dog\tMine \n", "red dog mine"},
		{"ＫＥＮＮＥＣＯＴＴ", "kennecott"}, // fullwidth folds under NFKC
		{"Peñasquito", "peñasquito"},
		{"St. Ives Mine", "st ives mine"},
		{"Mt. Hope (Moly) Project", "mt hope moly project"},
		{"Cripple Creek & Victor", "cripple creek victor"},
		{"Pueblo-Viejo", "pueblo-viejo"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestGazetteer_AddAliasesAndFirstWins(t *testing.T) {
	g := New()
	n := g.Add(Entry{Name: "Bingham Canyon Mine", Latitude: 40.52, Longitude: -112.15, Aliases: []string{"Kennecott", "bingham canyon mine"}})
	assert.Equal(t, 2, n)

	n = g.Add(Entry{Name: "Kennecott", Latitude: 1, Longitude: 1})
	assert.Equal(t, 0, n, "key already claimed")

	assert.Equal(t, []string{"bingham canyon mine", "kennecott"}, g.Keys())
	assert.Equal(t, 2, g.Len())
	assert.Len(t, g.Entries(), 2)

	e, ok := g.Lookup("  KENNECOTT ")
	require.True(t, ok)
	assert.Equal(t, "Bingham Canyon Mine", e.Name)
	assert.Equal(t, 0, e.Order)

	_, ok = g.Lookup("Red Dog")
	assert.False(t, ok)
}

func TestGazetteer_AllFollowsInsertionOrder(t *testing.T) {
	g := New()
	for _, name := range []string{"Zeta", "Alpha", "Mu"} {
		g.Add(Entry{Name: name})
	}

	var keys []string
	var orders []int
	for k, e := range g.All() {
		keys = append(keys, k)
		orders = append(orders, e.Order)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mu"}, keys)
	assert.Equal(t, []int{0, 1, 2}, orders)
}

func TestGazetteer_AllStopsEarly(t *testing.T) {
	g := New()
	g.Add(Entry{Name: "A"})
	g.Add(Entry{Name: "B"})

	count := 0
	for range g.All() {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestGazetteer_NilIsEmpty(t *testing.T) {
	var g *Gazetteer
	assert.True(t, g.Empty())
	assert.Nil(t, g.Keys())
	assert.Nil(t, g.Entries())
	_, ok := g.Lookup("x")
	assert.False(t, ok)
	for range g.All() {
		t.Fatal("nil gazetteer yielded a key")
	}
}

func TestGazetteer_EntriesAreCopies(t *testing.T) {
	g := New()
	g.Add(Entry{Name: "Eagle Mine", Latitude: 46.75})

	entries := g.Entries()
	entries[0].Latitude = 0

	e, _ := g.Lookup("eagle mine")
	assert.InDelta(t, 46.75, e.Latitude, 1e-9)
}

func TestFormatErrorMessage(t *testing.T) {
	assert.Equal(t, `gazetteer: mines.csv: row 3: field "latitude": out of range`,
		(&FormatError{Path: "mines.csv", Row: 3, Field: "latitude", Reason: "out of range"}).Error())
	assert.Equal(t, `gazetteer: mines.csv: field "name": required column missing`,
		(&FormatError{Path: "mines.csv", Field: "name", Reason: "required column missing"}).Error())
	assert.Equal(t, "gazetteer: mines.csv: row 2: expected an object",
		(&FormatError{Path: "mines.csv", Row: 2, Reason: "expected an object"}).Error())
	assert.Equal(t, "gazetteer: mines.txt: unsupported file extension .txt",
		(&FormatError{Path: "mines.txt", Reason: "unsupported file extension .txt"}).Error())
}
