package guest

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// PoolEmailPrefix marks an unclaimed, pre-seeded account.
	PoolEmailPrefix = "guest_pool_"
	// GuestEmailPrefix is shared by pooled and claimed guest accounts.
	GuestEmailPrefix = "guest_"
	// EmailDomain is the reserved domain for every guest account.
	EmailDomain = "@demo.local"
)

var claimedEmailPattern = regexp.MustCompile(`^guest_(\d+)_\d+@demo\.local$`)

// State is the lifecycle state encoded in an account email.
type State int

const (
	StatePermanent State = iota
	StatePooled
	StateClaimed
)

func (s State) String() string {
	switch s {
	case StatePooled:
		return "pooled"
	case StateClaimed:
		return "claimed"
	default:
		return "permanent"
	}
}

// Classify derives the account state from its email.
func Classify(email string) State {
	if strings.HasPrefix(email, PoolEmailPrefix) {
		return StatePooled
	}
	if claimedEmailPattern.MatchString(email) {
		return StateClaimed
	}
	return StatePermanent
}

// IsReservedEmail reports whether an email falls in the guest namespace and
// therefore cannot be registered.
func IsReservedEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	return strings.HasPrefix(email, GuestEmailPrefix) && strings.HasSuffix(email, EmailDomain)
}

// ParseGuestEpoch returns the creation time embedded in a claimed guest email.
func ParseGuestEpoch(email string) (time.Time, bool) {
	m := claimedEmailPattern.FindStringSubmatch(email)
	if m == nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// IsExpired reports whether a claimed guest is at least retention old at now.
// Emails that do not parse are never expired.
func IsExpired(email string, now time.Time, retention time.Duration) bool {
	created, ok := ParseGuestEpoch(email)
	if !ok {
		return false
	}
	return now.Sub(created) >= retention
}

func claimedIdentity(now time.Time) (email, username string) {
	unique := fmt.Sprintf("%d_%d", now.UnixMilli(), 1000+rand.IntN(9000))
	return GuestEmailPrefix + unique + EmailDomain, "Guest_" + unique
}

func pooledIdentity(now time.Time) (email, username string) {
	unique := fmt.Sprintf("%d_%d_%s", now.UnixMilli(), 1000+rand.IntN(9000), uuid.NewString()[:8])
	return PoolEmailPrefix + unique + EmailDomain, "GuestPool_" + unique
}
