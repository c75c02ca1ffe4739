package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseOwnerOrdering(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		entries []ScoreEntry
		want    int64
	}{
		{
			name: "most points wins",
			entries: []ScoreEntry{
				{PlayerID: 1, Points: 30, UpdatedAt: base},
				{PlayerID: 2, Points: 50, UpdatedAt: base.Add(time.Hour)},
			},
			want: 2,
		},
		{
			name: "points tie goes to first to reach the total",
			entries: []ScoreEntry{
				{PlayerID: 1, Points: 30, UpdatedAt: base.Add(time.Hour)},
				{PlayerID: 2, Points: 30, UpdatedAt: base},
			},
			want: 2,
		},
		{
			name: "full tie goes to lower player id",
			entries: []ScoreEntry{
				{PlayerID: 2, Points: 30, UpdatedAt: base},
				{PlayerID: 1, Points: 30, UpdatedAt: base},
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, ok := ChooseOwner(tt.entries)
			require.True(t, ok)
			assert.Equal(t, tt.want, owner.PlayerID)
		})
	}
}

func TestChooseOwnerEmptyLedger(t *testing.T) {
	_, ok := ChooseOwner(nil)
	assert.False(t, ok)
}
