package directory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsertAndByID(t *testing.T) {
	d := New()
	d.Upsert(Entry{Identifier: 2, Name: "alpha", IP: "10.0.0.1", Port: 7777})

	e, ok := d.ByID(2)
	require.True(t, ok)
	require.Equal(t, "alpha", e.Name)

	byName, ok := d.ByName("alpha")
	require.True(t, ok)
	require.Equal(t, 2, byName.Identifier)
}

func TestUpsertReplacesStaleNameClaim(t *testing.T) {
	d := New()
	d.Upsert(Entry{Identifier: 2, Name: "alpha"})
	d.Upsert(Entry{Identifier: 3, Name: "alpha"})

	_, ok := d.ByID(2)
	require.False(t, ok, "old identifier must be evicted when its name is reclaimed")

	e, ok := d.ByID(3)
	require.True(t, ok)
	require.Equal(t, "alpha", e.Name)

	byName, ok := d.ByName("alpha")
	require.True(t, ok)
	require.Equal(t, 3, byName.Identifier)
}

func TestUpsertRenamesSameIdentifier(t *testing.T) {
	d := New()
	d.Upsert(Entry{Identifier: 2, Name: "alpha"})
	d.Upsert(Entry{Identifier: 2, Name: "beta"})

	_, ok := d.ByName("alpha")
	require.False(t, ok)

	e, ok := d.ByName("beta")
	require.True(t, ok)
	require.Equal(t, 2, e.Identifier)
}

func TestRemoveClearsBothIndexes(t *testing.T) {
	d := New()
	d.Upsert(Entry{Identifier: 2, Name: "alpha"})
	d.Remove(2)

	_, ok := d.ByID(2)
	require.False(t, ok)
	_, ok = d.ByName("alpha")
	require.False(t, ok)
}

func TestUpdateCountsUnknownServer(t *testing.T) {
	d := New()
	require.False(t, d.UpdateCounts("missing", 5, 10))
}

func TestUpdateCountsKnownServer(t *testing.T) {
	d := New()
	d.Upsert(Entry{Identifier: 2, Name: "alpha", MaxPlayers: 100})
	require.True(t, d.UpdateCounts("alpha", 17, 200))

	e, _ := d.ByID(2)
	require.EqualValues(t, 17, e.PlayersOn)
	require.EqualValues(t, 200, e.MaxPlayers)
}

func TestAllReturnsInsertionOrder(t *testing.T) {
	d := New()
	d.Upsert(Entry{Identifier: 4, Name: "d"})
	d.Upsert(Entry{Identifier: 2, Name: "b"})
	d.Upsert(Entry{Identifier: 3, Name: "c"})

	all := d.All()
	require.Len(t, all, 3)
	require.Equal(t, []string{"d", "b", "c"}, []string{all[0].Name, all[1].Name, all[2].Name})

	// An update to an existing identifier keeps its original position.
	d.Upsert(Entry{Identifier: 4, Name: "d", PlayersOn: 9})
	all = d.All()
	require.Equal(t, []string{"d", "b", "c"}, []string{all[0].Name, all[1].Name, all[2].Name})

	// Removing and re-adding moves the identifier to the back.
	d.Remove(2)
	d.Upsert(Entry{Identifier: 2, Name: "b"})
	all = d.All()
	require.Equal(t, []string{"d", "c", "b"}, []string{all[0].Name, all[1].Name, all[2].Name})
}

func TestInvariantNameIndexIsExactInverse(t *testing.T) {
	d := New()
	for i := 2; i < 10; i++ {
		d.Upsert(Entry{Identifier: i, Name: name(i)})
	}
	d.Remove(5)
	d.Upsert(Entry{Identifier: 5, Name: name(2)}) // steal id 2's name

	all := d.All()
	require.Len(t, all, 7) // 8 original, remove(5) -> 7, re-add 5 stealing id 2's name evicts id 2 -> 7

	for _, e := range all {
		byName, ok := d.ByName(e.Name)
		require.True(t, ok)
		require.Equal(t, e.Identifier, byName.Identifier)
	}
}

func name(i int) string {
	return string(rune('a' + i))
}
