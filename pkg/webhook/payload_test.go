package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skyhookdb/skyhook-go/pkg/acl"
	"github.com/skyhookdb/skyhook-go/pkg/object"
)

func decode(t *testing.T, body string) *Payload {
	t.Helper()
	p, err := DecodePayload([]byte(body))
	require.NoError(t, err)
	return p
}

func TestDecodeNormalizesSnakeCaseKeys(t *testing.T) {
	p := decode(t, `{
		"trigger_name": "beforeSave",
		"class_name": "Song",
		"installation_id": "inst1",
		"object": {"objectId": "s1"}
	}`)

	require.Equal(t, BeforeSave, p.TriggerName)
	require.Equal(t, "Song", p.ClassName)
	require.Equal(t, "inst1", p.InstallationID)
	require.Equal(t, "s1", p.Object["objectId"])
}

func TestBeforeTriggerDiffsAgainstOriginal(t *testing.T) {
	p := decode(t, `{
		"triggerName": "beforeSave",
		"className": "Song",
		"original": {"objectId": "s1", "name": "A", "plays": 3},
		"object":   {"objectId": "s1", "name": "B", "plays": 3}
	}`)

	rec, err := p.DomainObject(false)
	require.NoError(t, err)
	require.Equal(t, "s1", rec.ID())

	require.Equal(t, []string{"name"}, rec.Changed())
	prev, ok := rec.Previous("name")
	require.True(t, ok)
	require.Equal(t, "A", prev)
	got, _ := rec.Get("name")
	require.Equal(t, "B", got)

	// unchanged fields never show up in the diff
	require.False(t, rec.WasChanged("plays"))
}

func TestBeforeTriggerWithoutOriginalIsFresh(t *testing.T) {
	p := decode(t, `{
		"triggerName": "beforeSave",
		"className": "Song",
		"object": {"name": "B"}
	}`)

	rec, err := p.DomainObject(false)
	require.NoError(t, err)
	require.True(t, rec.IsNew())

	got, _ := rec.Get("name")
	require.Equal(t, "B", got)
	_, hadPrior := rec.Previous("name")
	require.False(t, hadPrior)
}

func TestPristineSkipsChangeTracking(t *testing.T) {
	p := decode(t, `{
		"triggerName": "beforeSave",
		"className": "Song",
		"original": {"objectId": "s1", "name": "A"},
		"object":   {"objectId": "s1", "name": "B"}
	}`)

	rec, err := p.DomainObject(true)
	require.NoError(t, err)
	require.False(t, rec.Dirty())
	got, _ := rec.Get("name")
	require.Equal(t, "B", got)
}

func TestFunctionPayloadHasNoObject(t *testing.T) {
	p := decode(t, `{"functionName": "hello", "params": {"x": 1}}`)
	require.True(t, p.IsFunction())

	rec, err := p.DomainObject(false)
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestClassResolvedFromObjectPayload(t *testing.T) {
	p := decode(t, `{
		"triggerName": "afterSave",
		"object": {"className": "Song", "objectId": "s1", "name": "A"}
	}`)

	rec, err := p.DomainObject(false)
	require.NoError(t, err)
	require.Equal(t, "Song", rec.ClassName())
}

func TestUnresolvableClassFails(t *testing.T) {
	p := decode(t, `{"triggerName": "afterSave", "object": {"objectId": "s1"}}`)
	_, err := p.DomainObject(false)
	require.Error(t, err)
}

func TestPayloadACLWinsOverClassDefaults(t *testing.T) {
	defaults := acl.NewDefaults()
	defaults.Declare("Song", acl.Rule{Subject: acl.Public, Read: true, Write: true})

	p := decode(t, `{
		"triggerName": "beforeSave",
		"className": "Song",
		"object": {"name": "B", "ACL": {"u1": {"read": true}}}
	}`)
	p.Bind(object.NewRegistry(), defaults)

	rec, err := p.DomainObject(false)
	require.NoError(t, err)

	// the server-sent ACL replaces the broad class default
	require.True(t, rec.ACL().Equals(map[string]acl.Permission{
		"u1": {Read: true},
	}))
	_, tracked := rec.Get(object.KeyACL)
	require.False(t, tracked)
}

func TestAuthDataMergedForUserClass(t *testing.T) {
	reg := object.NewRegistry()
	p := decode(t, `{
		"triggerName": "beforeSave",
		"className": "_User",
		"original": {"objectId": "u1", "authData": {"github": {"id": "g1"}}},
		"object":   {"objectId": "u1"},
		"update":   {"authData": {"twitter": {"id": "t1"}}}
	}`)
	p.Bind(reg, acl.NewDefaults())

	rec, err := p.DomainObject(false)
	require.NoError(t, err)

	got, ok := rec.Get(object.KeyAuthData)
	require.True(t, ok)
	auth := got.(map[string]any)
	require.Contains(t, auth, "github")
	require.Contains(t, auth, "twitter")
}

func TestAuthDataIgnoredForPlainClass(t *testing.T) {
	reg := object.NewRegistry()
	p := decode(t, `{
		"triggerName": "beforeSave",
		"className": "Song",
		"original": {"objectId": "s1"},
		"object":   {"objectId": "s1"},
		"update":   {"authData": {"twitter": {"id": "t1"}}}
	}`)
	p.Bind(reg, acl.NewDefaults())

	rec, err := p.DomainObject(false)
	require.NoError(t, err)
	_, ok := rec.Get(object.KeyAuthData)
	require.False(t, ok)
}
