package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRootActivityResolver(t *testing.T) {
	cases := []struct {
		objectID string
		want     string
	}{
		{"urn:course:algebra-1", "urn:course:algebra-1"},
		{"urn:course:algebra-1/lesson-2", "urn:course:algebra-1"},
		{"urn:course:algebra-1/lesson-2/slide-9", "urn:course:algebra-1"},
		{"https://lms.example.com/algebra-1", "https://lms.example.com/algebra-1"},
		{"https://lms.example.com/algebra-1/lesson-2", "https://lms.example.com/algebra-1"},
		{"https://lms.example.com/algebra-1/lesson-2/quiz", "https://lms.example.com/algebra-1"},
		{"https://lms.example.com", "https://lms.example.com"},
	}
	for _, tc := range cases {
		course, root := RootActivityResolver(tc.objectID)
		require.Equal(t, tc.want, course, "course for %s", tc.objectID)
		require.Equal(t, tc.want, root, "root for %s", tc.objectID)
	}
}

func TestThrottle(t *testing.T) {
	th := newThrottle()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	interval := time.Minute

	require.True(t, th.allow("k", base, interval))
	require.False(t, th.allow("k", base.Add(30*time.Second), interval))
	require.True(t, th.allow("k", base.Add(interval), interval))

	// Independent keys never interfere.
	require.True(t, th.allow("other", base, interval))
}
