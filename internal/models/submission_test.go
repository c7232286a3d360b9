package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from, to string
		allowed  bool
	}{
		{StatusUnstarted, StatusInProgress, true},
		{StatusUnstarted, StatusDone, false},
		{StatusInProgress, StatusDone, true},
		{StatusInProgress, StatusUnstarted, false},
		{StatusDone, StatusInProgress, true},
		{StatusDone, StatusUnstarted, false},
		{StatusFlagged, StatusInProgress, true},
		{StatusFlagged, StatusDone, false},
		{StatusError, StatusInProgress, false},

		// Flagged and error short-circuit from any state.
		{StatusUnstarted, StatusFlagged, true},
		{StatusDone, StatusError, true},

		// Self-transitions are no-ops, not violations.
		{StatusInProgress, StatusInProgress, true},

		{"bogus", StatusDone, false},
		{StatusDone, "bogus", false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.allowed, ValidTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestValidStatus(t *testing.T) {
	require.True(t, ValidStatus(StatusFlagged))
	require.False(t, ValidStatus("pending"))
}

func TestIsMatched(t *testing.T) {
	id := uint(3)
	require.True(t, Submission{StudentID: &id}.IsMatched())
	require.False(t, Submission{}.IsMatched())
}
