package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	t.Run("normalizes case and whitespace", func(t *testing.T) {
		got, err := ParseType(" tempban ")
		require.NoError(t, err)
		assert.Equal(t, TypeTempBan, got)
	})

	t.Run("rejects types outside the closed set", func(t *testing.T) {
		_, err := ParseType("IDBAN")
		assert.Error(t, err)
	})
}

func TestCapabilities(t *testing.T) {
	cases := []struct {
		typ      Type
		banLike  bool
		blocks   bool
		muteLike bool
	}{
		{TypeBan, true, true, false},
		{TypeTempBan, true, true, false},
		{TypeIPBan, true, true, false},
		{TypeWarn, false, true, false},
		{TypeMute, false, false, true},
		{TypeCheck, false, false, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			assert.Equal(t, tc.banLike, tc.typ.IsBanLike())
			assert.Equal(t, tc.blocks, tc.typ.BlocksLogin())
			assert.Equal(t, tc.muteLike, tc.typ.IsMuteLike())
		})
	}
}

func TestRecordDerivedFields(t *testing.T) {
	start := time.Date(2026, 2, 14, 10, 15, 30, 0, time.UTC)
	end := start.Add(60 * time.Second)

	t.Run("permanent record never expires", func(t *testing.T) {
		rec := Record{StartTime: start}
		assert.True(t, rec.IsPermanent())
		assert.False(t, rec.IsExpired(start.Add(100*365*24*time.Hour)))
		assert.Zero(t, rec.DurationSeconds())
		assert.Zero(t, rec.Remaining(start))
	})

	t.Run("timed record expires exactly at end time", func(t *testing.T) {
		rec := Record{StartTime: start, EndTime: &end}
		assert.False(t, rec.IsPermanent())
		assert.Equal(t, int64(60), rec.DurationSeconds())
		assert.False(t, rec.IsExpired(start.Add(30*time.Second)))
		assert.True(t, rec.IsExpired(end))
		assert.Equal(t, 30*time.Second, rec.Remaining(start.Add(30*time.Second)))
	})
}

func TestNewHistory(t *testing.T) {
	start := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	rec := Record{
		InternalID: "PBRB-TM-AB12C",
		UUID:       uuid.New(),
		Type:       TypeMute,
		Reason:     "spam",
		Actor:      "Moderator",
		StartTime:  start,
	}
	at := start.Add(time.Minute)

	first := NewHistory(rec, ActionManualRemove, "Admin", "appeal", at)
	second := NewHistory(rec, ActionManualRemove, "Admin", "appeal", at)

	assert.Equal(t, rec.InternalID, first.InternalID)
	assert.Equal(t, "Admin", first.Actor)
	assert.Equal(t, "appeal", first.Reason)
	assert.Equal(t, ActionManualRemove, first.Action)
	assert.Equal(t, at, first.ActionTime)
	assert.Nil(t, first.EndTime)
	assert.Contains(t, first.ID, rec.InternalID+"-")
	assert.NotEqual(t, first.ID, second.ID, "same-millisecond actions must not collide")
}

func TestActiveSet(t *testing.T) {
	records := []Record{
		{InternalID: "A", Type: TypeMute},
		{InternalID: "B", Type: TypeBan},
	}
	set := NewActiveSet(records)
	records[0].Type = TypeWarn

	got, ok := set.Get(TypeMute)
	require.True(t, ok, "snapshot must not observe caller mutations")
	assert.Equal(t, "A", got.InternalID)
	assert.True(t, set.Has(TypeBan))
	assert.False(t, set.Has(TypeWarn))
	assert.Equal(t, 2, set.Len())
	assert.Contains(t, set.IDs(), "B")

	all := set.All()
	all[0].InternalID = "changed"
	again, _ := set.Get(TypeMute)
	assert.Equal(t, "A", again.InternalID)
}

func TestParseDuration(t *testing.T) {
	t.Run("combined tokens", func(t *testing.T) {
		d, err := ParseDuration("1d2h30m15s")
		require.NoError(t, err)
		assert.Equal(t, 26*time.Hour+30*time.Minute+15*time.Second, d)
	})

	t.Run("permanent keywords", func(t *testing.T) {
		for _, in := range []string{"perm", "Permanent", " forever "} {
			d, err := ParseDuration(in)
			require.NoError(t, err)
			assert.Zero(t, d)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, in := range []string{"", "10", "5x", "1d foo"} {
			_, err := ParseDuration(in)
			assert.Error(t, err, in)
		}
	})
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "permanent", FormatDuration(0))
	assert.Equal(t, "1d 2h 30m", FormatDuration(26*time.Hour+30*time.Minute))
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
}
