package broker

import (
	"testing"

	"github.com/questgate/authbroker/internal/constants"
	"github.com/stretchr/testify/require"
)

func TestRegistryAcquireStartsAtFirstConnectionID(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, constants.FirstConnectionID, r.Acquire())
	require.Equal(t, constants.FirstConnectionID+1, r.Acquire())
}

func TestRegistryReleaseReusesIdentifier(t *testing.T) {
	r := NewRegistry()
	id := r.Acquire()
	r.Release(id)
	require.Equal(t, id, r.Acquire(), "released identifiers must be reused before minting fresh ones")
}

func TestRegistryAddAndRemoveClient(t *testing.T) {
	r := NewRegistry()
	c := NewConnection(r.Acquire(), KindClient, nil)
	r.AddClient(c)

	got, ok := r.Client(c.ID)
	require.True(t, ok)
	require.Same(t, c, got)

	r.RemoveClient(c.ID)
	_, ok = r.Client(c.ID)
	require.False(t, ok)
}

func TestFindServerByName(t *testing.T) {
	r := NewRegistry()
	c := NewConnection(r.Acquire(), KindGameServer, nil)
	c.ServerName = "alpha"
	r.AddServer(c)

	got, ok := r.FindServerByName("alpha")
	require.True(t, ok)
	require.Equal(t, c.ID, got.ID)

	_, ok = r.FindServerByName("missing")
	require.False(t, ok)
}
