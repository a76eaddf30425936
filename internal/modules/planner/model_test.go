package planner

import "testing"

func TestCanTransitionTripStop(t *testing.T) {
	allowed := []struct{ from, to TripStopStatus }{
		{TripStopPending, TripStopEnroute},
		{TripStopPending, TripStopArrived},
		{TripStopPending, TripStopFailed},
		{TripStopEnroute, TripStopArrived},
		{TripStopEnroute, TripStopFailed},
		{TripStopArrived, TripStopCompleted},
		{TripStopArrived, TripStopFailed},
	}
	for _, tc := range allowed {
		if !CanTransitionTripStop(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to TripStopStatus }{
		{TripStopPending, TripStopCompleted},
		{TripStopEnroute, TripStopPending},
		{TripStopArrived, TripStopEnroute},
		{TripStopCompleted, TripStopFailed},
		{TripStopFailed, TripStopPending},
		{TripStopCompleted, TripStopCompleted},
		{TripStopPending, "bogus"},
	}
	for _, tc := range denied {
		if CanTransitionTripStop(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be denied", tc.from, tc.to)
		}
	}
}
