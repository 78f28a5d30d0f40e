// Package object implements the client-side record model: wire value types
// (pointers, geo points, dates), a class registry, and a Record with
// field-level dirty tracking against its last known persisted state.
package object

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Wire type tags used by the server's extended JSON encoding.
const (
	TypePointer  = "Pointer"
	TypeDate     = "Date"
	TypeGeoPoint = "GeoPoint"
)

// DateFormat is the server's timestamp layout: ISO-8601 at millisecond
// precision, UTC.
const DateFormat = "2006-01-02T15:04:05.000Z07:00"

// Pointer is a lightweight reference to a record without its field data.
type Pointer struct {
	ClassName string
	ObjectID  string
}

func (p Pointer) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"__type":    TypePointer,
		"className": p.ClassName,
		"objectId":  p.ObjectID,
	})
}

func (p *Pointer) UnmarshalJSON(data []byte) error {
	var raw struct {
		ClassName string `json:"className"`
		ObjectID  string `json:"objectId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.ClassName = raw.ClassName
	p.ObjectID = raw.ObjectID
	return nil
}

// Encode returns the pointer descriptor as a plain map, the form embedded in
// compiled queries and request bodies.
func (p Pointer) Encode() map[string]any {
	return map[string]any{
		"__type":    TypePointer,
		"className": p.ClassName,
		"objectId":  p.ObjectID,
	}
}

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Encode returns the geo point descriptor as a plain map.
func (g GeoPoint) Encode() map[string]any {
	return map[string]any{
		"__type":    TypeGeoPoint,
		"latitude":  g.Latitude,
		"longitude": g.Longitude,
	}
}

// EncodeDate returns the server's date descriptor for t.
func EncodeDate(t time.Time) map[string]any {
	return map[string]any{
		"__type": TypeDate,
		"iso":    t.UTC().Format(DateFormat),
	}
}

// DecodeDate parses a date descriptor or a bare ISO string.
func DecodeDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case string:
		t, err := time.Parse(DateFormat, d)
		if err != nil {
			t, err = time.Parse(time.RFC3339, d)
		}
		return t, err == nil
	case map[string]any:
		if d["__type"] == TypeDate {
			return DecodeDate(d["iso"])
		}
	}
	return time.Time{}, false
}
