package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinIsIdempotent(t *testing.T) {
	r := NewRegistry()

	pop, err := r.Join("c1", BackupStatus, false)
	require.NoError(t, err)
	assert.Equal(t, 1, pop)

	// Re-joining must not grow membership.
	pop, err = r.Join("c1", BackupStatus, false)
	require.NoError(t, err)
	assert.Equal(t, 1, pop)
	assert.Equal(t, 1, r.Population(BackupStatus))
}

func TestJoinUnknownRoom(t *testing.T) {
	r := NewRegistry()

	_, err := r.Join("c1", "no-such-room", false)
	assert.ErrorIs(t, err, ErrUnknownRoom)
	assert.Equal(t, 0, r.ActiveRooms())
}

func TestJoinPrivilegedRoom(t *testing.T) {
	r := NewRegistry()

	_, err := r.Join("c1", AdminNotifications, false)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, r.Population(AdminNotifications))

	pop, err := r.Join("c1", AdminNotifications, true)
	require.NoError(t, err)
	assert.Equal(t, 1, pop)
}

func TestLeaveGarbageCollectsEmptyRoom(t *testing.T) {
	r := NewRegistry()

	_, err := r.Join("c1", UploadProgress, false)
	require.NoError(t, err)
	_, err = r.Join("c2", UploadProgress, false)
	require.NoError(t, err)

	assert.Equal(t, 1, r.Leave("c1", UploadProgress))
	assert.Equal(t, 0, r.Leave("c2", UploadProgress))
	assert.Equal(t, 0, r.ActiveRooms())

	// Leaving again is a no-op.
	assert.Equal(t, 0, r.Leave("c2", UploadProgress))
}

func TestLeaveAll(t *testing.T) {
	r := NewRegistry()

	for _, room := range []string{DSLRMonitoring, BackupStatus, SystemStatus} {
		_, err := r.Join("c1", room, false)
		require.NoError(t, err)
	}
	_, err := r.Join("c2", BackupStatus, false)
	require.NoError(t, err)

	left := r.LeaveAll("c1")
	assert.ElementsMatch(t, []string{DSLRMonitoring, BackupStatus, SystemStatus}, left)
	assert.Equal(t, 1, r.Population(BackupStatus))
	assert.Equal(t, 1, r.ActiveRooms())
}

func TestMembersReturnsSnapshot(t *testing.T) {
	r := NewRegistry()

	_, err := r.Join("c1", CameraStatus, false)
	require.NoError(t, err)

	members := r.Members(CameraStatus)
	assert.Equal(t, []string{"c1"}, members)

	// Mutating the snapshot must not affect the registry.
	members[0] = "mutated"
	assert.Equal(t, []string{"c1"}, r.Members(CameraStatus))
}

func TestRoomsOf(t *testing.T) {
	r := NewRegistry()

	_, err := r.Join("c1", DSLRMonitoring, false)
	require.NoError(t, err)
	_, err = r.Join("c1", SystemStatus, false)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{DSLRMonitoring, SystemStatus}, r.RoomsOf("c1"))
	assert.Empty(t, r.RoomsOf("c2"))
}

func TestLookup(t *testing.T) {
	def, ok := Lookup(AdminNotifications)
	require.True(t, ok)
	assert.True(t, def.Privileged)
	assert.Equal(t, PriorityNormal, def.Priority)

	_, ok = Lookup("dslr")
	assert.False(t, ok)
}
