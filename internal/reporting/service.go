package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"call-console/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// MaxRange bounds one report query.
const MaxRange = 366 * 24 * time.Hour

// Repository abstracts data access for reporting.
type Repository interface {
	ListSessions(ctx context.Context, from, to time.Time, campaignID string) ([]calls.CallSession, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	rows, err := s.list(ctx, req.Range, req.CampaignID)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{CampaignID: req.CampaignID, OperatorID: req.OperatorID}
	ended := 0
	for _, c := range rows {
		if req.OperatorID != "" && c.OperatorID != req.OperatorID {
			continue
		}
		out.TotalCalls++
		switch c.Status {
		case calls.StatusActive:
			out.ActiveCalls++
			continue
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusAppointmentScheduled:
			out.AppointmentScheduledCalls++
		case calls.StatusNoAnswer:
			out.NoAnswerCalls++
		case calls.StatusMissed:
			out.MissedCalls++
		}
		ended++
		out.TotalDurationSeconds += int(c.Duration() / time.Second)
	}
	if ended > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / ended
		out.AppointmentRate = float64(out.AppointmentScheduledCalls) / float64(ended)
		out.ReachRate = float64(out.CompletedCalls+out.AppointmentScheduledCalls) / float64(ended)
	}
	return out, nil
}

// OperatorLeaderboard ranks operators by appointments, then by calls.
func (s *Service) OperatorLeaderboard(ctx context.Context, r TimeRange, campaignID string) ([]OperatorStats, error) {
	rows, err := s.list(ctx, r, campaignID)
	if err != nil {
		return nil, err
	}

	by := map[string]*OperatorStats{}
	for _, c := range rows {
		st, ok := by[c.OperatorID]
		if !ok {
			st = &OperatorStats{OperatorID: c.OperatorID}
			by[c.OperatorID] = st
		}
		st.Calls++
		if c.Status == calls.StatusAppointmentScheduled {
			st.Appointments++
		}
	}

	out := make([]OperatorStats, 0, len(by))
	for _, st := range by {
		st.Rate = float64(st.Appointments) / float64(st.Calls)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Appointments != out[j].Appointments {
			return out[i].Appointments > out[j].Appointments
		}
		if out[i].Calls != out[j].Calls {
			return out[i].Calls > out[j].Calls
		}
		return out[i].OperatorID < out[j].OperatorID
	})
	return out, nil
}

func (s *Service) list(ctx context.Context, r TimeRange, campaignID string) ([]calls.CallSession, error) {
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) || r.To.Sub(r.From) > MaxRange {
		return nil, ErrInvalidRequest
	}
	if s.repo == nil {
		return nil, errors.New("reporting: repository not configured")
	}
	return s.repo.ListSessions(ctx, r.From, r.To, campaignID)
}
