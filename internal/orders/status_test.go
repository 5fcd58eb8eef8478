package orders

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusNew, StatusProcessing},
		{StatusNew, StatusCancelled},
		{StatusProcessing, StatusShipped},
		{StatusProcessing, StatusCancelled},
		{StatusShipped, StatusDelivered},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusCancelled, StatusNew},
		{StatusCancelled, StatusCancelled},
		{StatusDelivered, StatusCancelled},
		{StatusShipped, StatusCancelled},
		{StatusNew, StatusDelivered},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s denied", tc.from, tc.to)
		}
	}
}
