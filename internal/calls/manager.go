package calls

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"call-console/internal/apperr"
	"call-console/internal/audit"
	"call-console/internal/auth"
	"call-console/pkg/logger"

	"github.com/google/uuid"
)

const startNotes = "call started from console"

// Deps are the collaborators shared by every operator's Manager.
type Deps struct {
	Repo     Repository
	Resolver Resolver
	Events   audit.EventLogger

	// Lease is optional. Nil keeps the active-session check local to this process.
	Lease ActiveLease

	Log   *slog.Logger
	Clock func() time.Time
}

// Manager runs the call state machine for one operator:
// Idle -> Active -> {completed | appointment_scheduled | no_answer | missed} -> Idle.
//
// Operations on one Manager are serialized; at most one session is Active at a time.
type Manager struct {
	session auth.Session
	deps    Deps
	log     *slog.Logger

	// opMu serializes StartCall and UpdateStatus across their store round trips.
	opMu sync.Mutex

	mu     sync.RWMutex
	active *CallSession
}

func NewManager(s auth.Session, deps Deps) (*Manager, error) {
	if !s.Valid() {
		return nil, errors.New("calls: invalid operator session")
	}
	if deps.Repo == nil || deps.Resolver == nil {
		return nil, errors.New("calls: repository and resolver are required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Manager{
		session: s,
		deps:    deps,
		log:     logger.Component(deps.Log, "calls").With("operator_id", s.OperatorID),
	}, nil
}

func (m *Manager) Session() auth.Session { return m.session }

// Active returns a copy of the local active session, if any.
func (m *Manager) Active() (CallSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return CallSession{}, false
	}
	return *m.active, true
}

// Restore adopts an active session left in the store by an earlier process.
// It is a no-op when a session is already active locally.
func (m *Manager) Restore(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if _, ok := m.Active(); ok {
		return nil
	}
	s, err := m.deps.Repo.ActiveSession(ctx, m.session.OperatorID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Store("restore active session", err)
	}
	m.setActive(&s)
	return nil
}

// StartCall opens an Active session for clientID within campaignID.
func (m *Manager) StartCall(ctx context.Context, clientID, campaignID string) (CallSession, error) {
	clientID = strings.TrimSpace(clientID)
	campaignID = strings.TrimSpace(campaignID)
	if clientID == "" {
		return CallSession{}, apperr.Invalid("client_id", "required")
	}
	if campaignID == "" {
		return CallSession{}, apperr.Invalid("campaign_id", "required")
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if cur, ok := m.Active(); ok {
		return CallSession{}, apperr.Invalid("call", "session "+cur.ID+" is still active")
	}
	if err := m.resolve(ctx, clientID, campaignID); err != nil {
		return CallSession{}, err
	}

	s := CallSession{
		ID:         uuid.NewString(),
		OperatorID: m.session.OperatorID,
		ClientID:   clientID,
		CampaignID: campaignID,
		Status:     StatusActive,
		Notes:      startNotes,
		StartedAt:  m.deps.Clock().UTC(),
	}

	leased, err := m.acquire(ctx, s.ID)
	if err != nil {
		return CallSession{}, err
	}

	if err := m.deps.Repo.CreateSession(ctx, s); err != nil {
		if leased {
			m.release(ctx, s.ID)
		}
		if apperr.IsValidation(err) {
			return CallSession{}, err
		}
		m.emit(ctx, audit.Entry{
			Type:    audit.EventTypeCallInit,
			Status:  audit.StatusError,
			Message: "call session could not be created",
			Data:    map[string]string{"client": clientID, "campaign": campaignID, "error": err.Error()},
		})
		return CallSession{}, apperr.Store("create call session", err)
	}

	m.setActive(&s)
	m.emit(ctx, audit.Entry{
		Type:    audit.EventTypeCallInit,
		Status:  audit.StatusSuccess,
		Message: "call session started",
		Data:    map[string]string{"client": clientID, "campaign": campaignID},
	})
	m.log.Info("call started", "call_id", s.ID, "client_id", clientID, "campaign_id", campaignID)
	return s, nil
}

// UpdateStatus closes the active session callID with a terminal status.
// Empty notes default to "status updated to <status>".
func (m *Manager) UpdateStatus(ctx context.Context, callID string, status Status, notes string) (CallSession, error) {
	if !status.Terminal() {
		return CallSession{}, apperr.Invalid("status", "must be one of completed, appointment_scheduled, no_answer, missed")
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	cur, ok := m.Active()
	if !ok || cur.ID != strings.TrimSpace(callID) {
		return CallSession{}, apperr.Invalid("call_id", "no active session with this id")
	}
	if strings.TrimSpace(notes) == "" {
		notes = "status updated to " + string(status)
	}

	updated, err := m.deps.Repo.UpdateSession(ctx, cur.ID, SessionPatch{
		Status:  status,
		EndedAt: m.deps.Clock().UTC(),
		Notes:   notes,
	})
	if errors.Is(err, ErrNotFound) {
		// Closed elsewhere, e.g. by another console of the same operator.
		m.setActive(nil)
		m.release(ctx, cur.ID)
		m.log.Warn("active session already closed in store", "call_id", cur.ID)
		return CallSession{}, apperr.Invalid("call_id", "session "+cur.ID+" is no longer active")
	}
	if err != nil {
		// Pointer stays set so the operator can retry the disposition.
		return CallSession{}, apperr.Store("update call session", err)
	}

	m.setActive(nil)
	m.release(ctx, cur.ID)
	m.log.Info("call ended", "call_id", cur.ID, "status", status)
	return updated, nil
}

func (m *Manager) resolve(ctx context.Context, clientID, campaignID string) error {
	ok, err := m.deps.Resolver.ClientExists(ctx, clientID)
	if err != nil {
		return apperr.Store("resolve client", err)
	}
	if !ok {
		return apperr.Invalid("client_id", "unknown client")
	}
	ok, err = m.deps.Resolver.CampaignExists(ctx, campaignID)
	if err != nil {
		return apperr.Store("resolve campaign", err)
	}
	if !ok {
		return apperr.Invalid("campaign_id", "unknown campaign")
	}
	return nil
}

// acquire takes the cross-process lease. Lease backend errors fall back to the local check.
func (m *Manager) acquire(ctx context.Context, callID string) (bool, error) {
	if m.deps.Lease == nil {
		return false, nil
	}
	ok, err := m.deps.Lease.Acquire(ctx, m.session.OperatorID, callID)
	if err != nil {
		m.log.Warn("active lease unavailable, using local check only", "err", err)
		return false, nil
	}
	if !ok {
		return false, apperr.Invalid("call", "operator has an active call in another console")
	}
	return true, nil
}

func (m *Manager) release(ctx context.Context, callID string) {
	if m.deps.Lease == nil {
		return
	}
	if err := m.deps.Lease.Release(context.WithoutCancel(ctx), m.session.OperatorID, callID); err != nil {
		m.log.Warn("active lease release failed", "call_id", callID, "err", err)
	}
}

func (m *Manager) emit(ctx context.Context, e audit.Entry) {
	if m.deps.Events == nil {
		return
	}
	if e.Actor == "" {
		e.Actor = m.session.OperatorID
	}
	m.deps.Events.LogEvent(ctx, e)
}

func (m *Manager) setActive(s *CallSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = s
}
