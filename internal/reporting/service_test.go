package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"call-console/internal/calls"
)

func session(id, op, campaign string, st calls.Status, start time.Time, dur time.Duration) calls.CallSession {
	s := calls.CallSession{ID: id, OperatorID: op, CampaignID: campaign, Status: st, StartedAt: start}
	if st != calls.StatusActive {
		end := start.Add(dur)
		s.EndedAt = &end
	}
	return s
}

func TestReporting_CallsSummaryAggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Sessions = []calls.CallSession{
		session("s1", "op1", "camp", calls.StatusCompleted, now, 30*time.Second),
		session("s2", "op1", "camp", calls.StatusAppointmentScheduled, now, 90*time.Second),
		session("s3", "op2", "camp", calls.StatusNoAnswer, now, 0),
		session("s4", "op2", "camp", calls.StatusMissed, now, 0),
		session("s5", "op2", "camp", calls.StatusActive, now, 0),
		session("s6", "op2", "other", calls.StatusCompleted, now, 60*time.Second),
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{CampaignID: "camp", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 5 || out.ActiveCalls != 1 {
		t.Fatalf("unexpected totals: %+v", out)
	}
	if out.CompletedCalls != 1 || out.AppointmentScheduledCalls != 1 || out.NoAnswerCalls != 1 || out.MissedCalls != 1 {
		t.Fatalf("unexpected dispositions: %+v", out)
	}
	if out.TotalDurationSeconds != 120 || out.AverageDurationSeconds != 30 {
		t.Fatalf("unexpected durations: %+v", out)
	}
	if out.AppointmentRate != 0.25 || out.ReachRate != 0.5 {
		t.Fatalf("unexpected rates: %+v", out)
	}
}

func TestReporting_CallsSummaryPerOperator(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Sessions = []calls.CallSession{
		session("s1", "op1", "camp", calls.StatusCompleted, now, 30*time.Second),
		session("s2", "op2", "camp", calls.StatusCompleted, now, 50*time.Second),
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{OperatorID: "op1", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 {
		t.Fatalf("expected 1 call, got %d", out.TotalCalls)
	}
}

func TestReporting_RangeIsValidated(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Unix(1700000000, 0).UTC()
	bad := []TimeRange{
		{},
		{From: now, To: now},
		{From: now, To: now.Add(-time.Hour)},
		{From: now, To: now.Add(2 * MaxRange)},
	}
	for _, r := range bad {
		if _, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{Range: r}); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest for %+v, got %v", r, err)
		}
	}
}

func TestReporting_OperatorLeaderboard(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Sessions = []calls.CallSession{
		session("s1", "op1", "camp", calls.StatusCompleted, now, time.Second),
		session("s2", "op2", "camp", calls.StatusAppointmentScheduled, now, time.Second),
		session("s3", "op2", "camp", calls.StatusNoAnswer, now, time.Second),
		session("s4", "op3", "camp", calls.StatusMissed, now, time.Second),
		session("s5", "op3", "camp", calls.StatusMissed, now, time.Second),
	}
	svc := NewService(repo)

	rows, err := svc.OperatorLeaderboard(context.Background(), TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}, "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(rows) != 3 || rows[0].OperatorID != "op2" || rows[1].OperatorID != "op3" || rows[2].OperatorID != "op1" {
		t.Fatalf("unexpected order: %+v", rows)
	}
	if rows[0].Rate != 0.5 {
		t.Fatalf("unexpected rate: %+v", rows[0])
	}
}
