package ports

import "testing"

func TestWALStatsPending(t *testing.T) {
	cases := []struct {
		name  string
		stats WALStats
		want  uint64
	}{
		{"empty", WALStats{OldestUncommitted: 1, LatestAppended: 0}, 0},
		{"all committed", WALStats{OldestUncommitted: 6, LatestAppended: 5}, 0},
		{"one pending", WALStats{OldestUncommitted: 5, LatestAppended: 5}, 1},
		{"several pending", WALStats{OldestUncommitted: 3, LatestAppended: 9}, 7},
		{"zero value", WALStats{}, 0},
	}
	for _, tc := range cases {
		if got := tc.stats.Pending(); got != tc.want {
			t.Errorf("%s: Pending() = %d, want %d", tc.name, got, tc.want)
		}
	}
}
