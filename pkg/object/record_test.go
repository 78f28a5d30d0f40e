package object

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skyhookdb/skyhook-go/pkg/acl"
)

func TestDirtyTracking(t *testing.T) {
	r := Decode("Song", map[string]any{
		"objectId": "abc123",
		"name":     "A",
		"plays":    float64(10),
	}, nil)

	require.False(t, r.Dirty())

	r.Set("name", "B")
	require.True(t, r.WasChanged("name"))
	prev, had := r.Previous("name")
	require.True(t, had)
	require.Equal(t, "A", prev)
	require.Equal(t, []string{"name"}, r.Changed())

	// writing the same value back is not a change
	r.Set("plays", float64(10))
	require.False(t, r.WasChanged("plays"))

	require.Equal(t, map[string]any{"name": "B"}, r.ChangesPayload())

	r.ClearChanges()
	require.False(t, r.Dirty())
}

func TestUnsetEmitsDeleteOp(t *testing.T) {
	r := Decode("Song", map[string]any{"objectId": "x", "genre": "jazz"}, nil)
	r.Unset("genre")

	payload := r.ChangesPayload()
	require.Equal(t, map[string]any{"__op": "Delete"}, payload["genre"])
}

func TestDecodeExplicitACLWins(t *testing.T) {
	defaults := acl.NewDefaults()
	defaults.Declare("Song", acl.Rule{Subject: acl.Public, Read: true})

	// explicitly empty ACL: defaults must not apply
	r := Decode("Song", map[string]any{
		"objectId": "x",
		"ACL":      map[string]any{},
	}, defaults)
	require.Zero(t, r.ACL().Len())

	// explicit non-empty ACL kept verbatim
	r = Decode("Song", map[string]any{
		"objectId": "x",
		"ACL": map[string]any{
			"u1": map[string]any{"read": true, "write": true},
		},
	}, defaults)
	require.True(t, r.ACL().Equals(map[string]acl.Permission{
		"u1": {Read: true, Write: true},
	}))
}

func TestDecodeAbsentACLUsesDefaults(t *testing.T) {
	defaults := acl.NewDefaults()
	defaults.Declare("Song", acl.Rule{Subject: acl.Public, Read: true})

	r := Decode("Song", map[string]any{"objectId": "x"}, defaults)
	require.True(t, r.ACL().Equals(map[string]acl.Permission{
		"*": {Read: true},
	}))
}

func TestNewRecordAppliesDefaults(t *testing.T) {
	defaults := acl.NewDefaults()
	defaults.Declare("Song", acl.Rule{Subject: acl.Public, Read: true})

	r := NewRecord("Song", defaults)
	require.True(t, r.IsNew())
	require.Equal(t, 1, r.ACL().Len())
}

func TestApplyServerResult(t *testing.T) {
	r := NewRecord("Song", nil)
	r.Set("name", "A")

	r.ApplyServerResult(map[string]any{
		"objectId":  "abc",
		"createdAt": "2026-08-23T10:00:00.000Z",
	})
	require.Equal(t, "abc", r.ID())
	require.False(t, r.IsNew())
	require.False(t, r.Dirty())
	require.Equal(t, 2026, r.CreatedAt().Year())
}

func TestDateRoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 23, 10, 30, 0, 250e6, time.UTC)
	enc := EncodeDate(at)
	require.Equal(t, "Date", enc["__type"])

	back, ok := DecodeDate(enc)
	require.True(t, ok)
	require.True(t, at.Equal(back))
}

func TestSingularize(t *testing.T) {
	for input, want := range map[string]string{
		"songs":      "song",
		"artist":     "artist",
		"categories": "category",
		"boxes":      "box",
		"classes":    "class",
		"address":    "address",
	} {
		require.Equal(t, want, Singularize(input), "input %q", input)
	}
}

func TestClassForField(t *testing.T) {
	reg := NewRegistry()
	require.Equal(t, "Song", reg.ClassForField("songs"))
	require.Equal(t, "Artist", reg.ClassForField("artist"))

	reg.BindField("author", "_User")
	require.Equal(t, "_User", reg.ClassForField("author"))
}

func TestIsUserClass(t *testing.T) {
	reg := NewRegistry()
	require.True(t, reg.IsUserClass("_User"))
	require.False(t, reg.IsUserClass("Song"))

	reg.Register("Account", ClassOptions{User: true})
	require.True(t, reg.IsUserClass("Account"))
}
