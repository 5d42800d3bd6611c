package models

import "testing"

func TestSubmissionStatusTransitions(t *testing.T) {
	all := []SubmissionStatus{SubmissionInProgress, SubmissionPending, SubmissionApproved, SubmissionRejected, SubmissionInfoRequested}
	allowed := map[SubmissionStatus][]SubmissionStatus{
		SubmissionInProgress:    {SubmissionInProgress, SubmissionPending},
		SubmissionPending:       {SubmissionApproved, SubmissionRejected, SubmissionInfoRequested},
		SubmissionApproved:      {SubmissionApproved, SubmissionRejected, SubmissionInfoRequested},
		SubmissionRejected:      {SubmissionApproved, SubmissionRejected, SubmissionInfoRequested},
		SubmissionInfoRequested: {SubmissionApproved, SubmissionRejected, SubmissionInfoRequested},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}

	if SubmissionStatus("archived").CanTransitionTo(SubmissionPending) {
		t.Errorf("unknown status must not transition")
	}
}

func TestActiveStatuses(t *testing.T) {
	for _, s := range ActiveSubmissionStatuses {
		if !s.IsActive() {
			t.Errorf("%s listed as active but IsActive is false", s)
		}
	}
	if SubmissionRejected.IsActive() || SubmissionApproved.IsActive() || SubmissionInfoRequested.IsActive() {
		t.Errorf("reviewed statuses must not be active")
	}
}

func TestTaskIsAssignedTo(t *testing.T) {
	worker := uint(7)
	task := Task{AssignedWorkerID: &worker}
	if !task.IsAssignedTo(7) || task.IsAssignedTo(8) {
		t.Errorf("IsAssignedTo mismatch")
	}
	if (&Task{}).IsAssignedTo(0) {
		t.Errorf("unassigned task must not match user 0")
	}
}
