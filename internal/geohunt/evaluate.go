package geohunt

import (
	"errors"
	"strings"

	"github.com/trailplay/geohunt/internal/geo"
)

var ErrNoGeofenceResult = errors.New("gps trial has no geofence result")

// Input carries the player's answer for a trial. Only the field matching
// the trial's type is read.
type Input struct {
	Text     string
	Option   int
	Order    []string
	QRDecode string
	Geofence *geo.GeofenceResult
}

// Evaluate judges a player's input against a trial. It is pure: no state
// is read or written, and gps trials are judged solely by the geofence
// result computed beforehand.
func Evaluate(t Trial, in Input) (bool, error) {
	switch t.Type {
	case TrialTextUnique, TrialTextNumeric:
		return strings.EqualFold(strings.TrimSpace(in.Text), strings.TrimSpace(t.Answer)), nil

	case TrialOptions:
		return in.Option == t.CorrectOption, nil

	case TrialOrdering:
		if len(in.Order) != len(t.CorrectOrder) {
			return false, nil
		}
		for i := range t.CorrectOrder {
			if in.Order[i] != t.CorrectOrder[i] {
				return false, nil
			}
		}
		return true, nil

	case TrialQR:
		return in.QRDecode == t.QRContent, nil

	case TrialGPS:
		if in.Geofence == nil {
			return false, ErrNoGeofenceResult
		}
		return in.Geofence.Success, nil

	default:
		return false, ErrUnsupportedTrialType
	}
}
