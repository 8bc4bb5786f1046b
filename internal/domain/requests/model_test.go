package requests

import "testing"

func TestStatus_CanTransition_TerminalStatesAreSticky(t *testing.T) {
	for _, from := range []Status{StatusRejected, StatusCancelled} {
		for _, to := range []Status{StatusPending, StatusInReview, StatusAccepted, StatusRejected, StatusCancelled} {
			if from.CanTransition(to) {
				t.Fatalf("%s -> %s must not be allowed", from, to)
			}
		}
	}
	// accepted solo sale hacia rejected (el revert).
	if !StatusAccepted.CanTransition(StatusRejected) {
		t.Fatalf("accepted -> rejected must be allowed for revert")
	}
	if StatusAccepted.CanTransition(StatusCancelled) {
		t.Fatalf("accepted -> cancelled must not be allowed")
	}
}

func TestStatus_InReviewCanBeCancelled(t *testing.T) {
	if !StatusInReview.CanTransition(StatusCancelled) {
		t.Fatalf("in_review -> cancelled must be allowed")
	}
}

func TestParseStatus_RejectsUnknownLabels(t *testing.T) {
	if _, err := ParseStatus("approved"); err == nil {
		t.Fatalf("expected error for unknown label")
	}
}

func TestDistinctDocumentTypes(t *testing.T) {
	req := AdoptionRequest{Documents: []Document{
		{ID: "a", Type: "id_proof"},
		{ID: "b", Type: "id_proof"},
		{ID: "c", Type: "home_check"},
	}}
	if got := req.DistinctDocumentTypes(); got != 2 {
		t.Fatalf("expected 2 distinct types, got %d", got)
	}
}
