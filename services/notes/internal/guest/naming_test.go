package guest

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		email string
		want  State
	}{
		{"guest_pool_1700000000000_1234_abcdef12@demo.local", StatePooled},
		{"guest_1700000000000_1234@demo.local", StateClaimed},
		{"guest_abc_1234@demo.local", StatePermanent},
		{"guest_1700000000000_1234@example.com", StatePermanent},
		{"alice@example.com", StatePermanent},
		{"ogsdemo", StatePermanent},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.email), tc.email)
	}
}

func TestGeneratedIdentitiesClassify(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	email, username := claimedIdentity(now)
	assert.Equal(t, StateClaimed, Classify(email))
	assert.Regexp(t, `^Guest_1700000000000_\d{4}$`, username)
	created, ok := ParseGuestEpoch(email)
	require.True(t, ok)
	assert.True(t, created.Equal(now))

	email, username = pooledIdentity(now)
	assert.Equal(t, StatePooled, Classify(email))
	assert.Regexp(t, `^GuestPool_1700000000000_\d{4}_[0-9a-f]{8}$`, username)
	_, ok = ParseGuestEpoch(email)
	assert.False(t, ok, "pooled emails carry no claim epoch")
}

func TestIsExpiredBoundary(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	at := func(created time.Time) string {
		return fmt.Sprintf("guest_%d_1234@demo.local", created.UnixMilli())
	}

	assert.True(t, IsExpired(at(now.Add(-DefaultRetention)), now, DefaultRetention), "exactly the retention age is expired")
	assert.False(t, IsExpired(at(now.Add(-DefaultRetention+time.Millisecond)), now, DefaultRetention))
	assert.True(t, IsExpired(at(now.Add(-25*time.Hour)), now, DefaultRetention))
	assert.False(t, IsExpired("guest_pool_1_1234_abcdef12@demo.local", now, DefaultRetention))
	assert.False(t, IsExpired("alice@example.com", now, DefaultRetention))
}

func TestIsReservedEmail(t *testing.T) {
	assert.True(t, IsReservedEmail("guest_1_2@demo.local"))
	assert.True(t, IsReservedEmail(" GUEST_POOL_x@Demo.Local "))
	assert.False(t, IsReservedEmail("guest_1_2@example.com"))
	assert.False(t, IsReservedEmail("alice@demo.local"))
}
