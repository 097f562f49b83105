package tenancy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/shared"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SessionConfig tunes the resolution state machine
type SessionConfig struct {
	Retry RetryPolicy
	// CacheFallback keeps a same-email cached snapshot alive when the store
	// finds no business for the identity. Disable to fail closed.
	CacheFallback bool
}

// DefaultSessionConfig returns the default session configuration
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Retry:         DefaultRetryPolicy(),
		CacheFallback: true,
	}
}

// SessionDeps are the collaborators a Session works with
type SessionDeps struct {
	Resolver   *BusinessResolver
	Requests   *LinkRequestService
	Businesses tenancy.BusinessRepository
	Snapshots  tenancy.SnapshotStore
	Metrics    *telemetry.ContextMetrics
	Logger     *zap.Logger
}

// Session is the business context of one signed-in user. It runs the
// resolution state machine and owns the linked-business registry and the
// pending link request lists.
//
//	no session ──identity──> loading ──(cache paint)──> resolved(cache)
//	                            │                              │
//	                            └──────────resolve─────────────┴──> resolved | no-access
//	                                 transient error: retry with linear backoff,
//	                                 then cache fallback, then no-access
//
// Every started resolution gets a generation number. A resolution that
// settles after a newer one was started is discarded.
type Session struct {
	deps  SessionDeps
	cfg   SessionConfig
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu          sync.RWMutex
	identity    *tenancy.Identity
	support     tenancy.SupportSession
	state       tenancy.ResolvedContext
	generation  uint64
	started     bool
	resolved    bool
	requestsFor string
	cancel      context.CancelFunc
	done        chan struct{}
	changed     chan struct{}
}

// NewSession creates a session with no identity
func NewSession(deps SessionDeps, cfg SessionConfig) *Session {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	done := make(chan struct{})
	close(done)
	return &Session{
		deps:    deps,
		cfg:     cfg,
		sleep:   sleepContext,
		now:     time.Now,
		state:   tenancy.NoSessionContext(),
		done:    done,
		changed: make(chan struct{}),
	}
}

// Identity returns the identity the session resolves for, or nil
func (s *Session) Identity() *tenancy.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	identity := *s.identity
	return &identity
}

// Support returns the support side channel currently applied
func (s *Session) Support() tenancy.SupportSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.support
}

// SetIdentity switches the session to identity and starts resolving.
// A nil identity tears the context down to the no-session state.
func (s *Session) SetIdentity(ctx context.Context, identity *tenancy.Identity, support tenancy.SupportSession) <-chan struct{} {
	s.mu.Lock()
	if identity == nil {
		s.identity = nil
	} else {
		next := *identity
		if s.identity == nil || s.identity.UID != next.UID || s.identity.Email != next.Email || s.support != support {
			s.started = false
			s.resolved = false
			s.requestsFor = ""
			s.assignLocked(tenancy.ResolvedContext{Loading: true})
		}
		s.identity = &next
	}
	s.support = support
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// Refresh starts a new resolution and returns a channel that is closed when
// it settles or is superseded. Safe to call while another resolution runs.
func (s *Session) Refresh(ctx context.Context) <-chan struct{} {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	done := make(chan struct{})
	s.done = done

	if s.identity == nil {
		s.started = false
		s.resolved = false
		s.requestsFor = ""
		s.assignLocked(tenancy.NoSessionContext())
		s.mu.Unlock()
		close(done)
		return done
	}

	identity := *s.identity
	support := s.support
	paint := !s.started && !s.resolved && !support.Active()
	s.started = true
	if !s.resolved && !s.state.HasBusiness() {
		s.assignLocked(tenancy.ResolvedContext{Loading: true, UserEmail: identity.Email})
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.mu.Unlock()

	s.deps.Logger.Info("Resolving business context",
		zap.String("user_id", identity.UID),
		zap.Uint64("generation", gen),
		zap.Bool("support_mode", support.Active()))

	if paint {
		s.paintFromCache(runCtx, gen, identity)
	}

	go s.run(runCtx, cancel, gen, done, ResolveInput{Identity: identity, Support: support})
	return done
}

// Done returns the channel of the most recently started resolution
func (s *Session) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// Close stops any in-flight resolution. Its result will be discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Context returns a copy of the current resolved context
func (s *Session) Context() tenancy.ResolvedContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Await waits for done, then returns the current context
func (s *Session) Await(ctx context.Context, done <-chan struct{}) (tenancy.ResolvedContext, error) {
	select {
	case <-done:
		return s.Context(), nil
	case <-ctx.Done():
		return s.Context(), ctx.Err()
	}
}

// AwaitVisible waits until the context is no longer loading. A cache paint
// counts as visible.
func (s *Session) AwaitVisible(ctx context.Context) (tenancy.ResolvedContext, error) {
	for {
		s.mu.RLock()
		if !s.state.Loading {
			state := s.state.Clone()
			s.mu.RUnlock()
			return state, nil
		}
		changed := s.changed
		s.mu.RUnlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return s.Context(), ctx.Err()
		}
	}
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, gen uint64, done chan struct{}, in ResolveInput) {
	defer close(done)
	defer cancel()

	started := s.now()
	logger := s.deps.Logger.With(zap.String("user_id", in.Identity.UID), zap.Uint64("generation", gen))

	for attempt := 0; ; attempt++ {
		if !s.isCurrent(gen) {
			return
		}

		resolved, err := s.deps.Resolver.ResolveOnce(ctx, in)
		switch {
		case err == nil:
			s.settleResolved(ctx, gen, in, resolved, started)
			return
		case errors.Is(err, tenancy.ErrNoBusiness):
			logger.Info("No business found for identity")
			s.settleFallback(ctx, gen, in.Identity, "no_business", s.cfg.CacheFallback, started)
			return
		case errors.Is(err, tenancy.ErrDashboardDisabled), errors.Is(err, tenancy.ErrSupportTargetMissing):
			logger.Info("Business context denied", zap.Error(err))
			s.settleFallback(ctx, gen, in.Identity, "denied", false, started)
			return
		}

		if ctx.Err() != nil {
			return
		}

		retry := attempt + 1
		if !s.cfg.Retry.ShouldRetry(retry) {
			logger.Error("Business context resolution failed, retries exhausted",
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			s.settleFallback(ctx, gen, in.Identity, "exhausted", true, started)
			return
		}

		delay := s.cfg.Retry.Delay(retry)
		logger.Warn("Business context resolution failed, retrying",
			zap.Int("retry", retry),
			zap.Duration("delay", delay),
			zap.Error(err))
		s.deps.Metrics.RecordRetry(ctx)
		if err := s.sleep(ctx, delay); err != nil {
			return
		}
	}
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gen == s.generation
}

func (s *Session) paintFromCache(ctx context.Context, gen uint64, identity tenancy.Identity) {
	snap := s.loadSnapshot(ctx, identity)
	if snap == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || !s.state.Loading {
		return
	}
	s.assignLocked(snap.ToContext())
	s.deps.Logger.Debug("Painted business context from cache",
		zap.String("user_id", identity.UID),
		zap.String("business_id", snap.BusinessID))
}

func (s *Session) settleResolved(ctx context.Context, gen uint64, in ResolveInput, resolved tenancy.ResolvedContext, started time.Time) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	prev := s.state
	resolved.Loading = false
	resolved.NoAccess = false
	if prev.BusinessID == resolved.BusinessID {
		resolved.IncomingLinkRequests = prev.IncomingLinkRequests
		resolved.OutgoingLinkRequests = prev.OutgoingLinkRequests
		if _, ok := resolved.FindLinkedBusiness(prev.CurrentViewingBusinessID); ok {
			resolved.CurrentViewingBusinessID = prev.CurrentViewingBusinessID
		}
	}
	s.resolved = true
	s.assignLocked(resolved)
	needsRequests := s.requestsFor != resolved.BusinessID
	s.mu.Unlock()

	if resolved.Source != tenancy.SourceSupport && s.deps.Snapshots != nil {
		if err := s.deps.Snapshots.Save(ctx, in.Identity.UID, tenancy.NewSnapshot(resolved)); err != nil {
			s.deps.Logger.Warn("Failed to persist context snapshot",
				zap.String("user_id", in.Identity.UID),
				zap.Error(err))
		}
	}

	s.deps.Logger.Info("Business context resolved",
		zap.String("user_id", in.Identity.UID),
		zap.String("business_id", resolved.BusinessID),
		zap.String("role", string(resolved.Role)),
		zap.String("source", string(resolved.Source)))
	s.deps.Metrics.RecordResolution(ctx, "resolved", string(resolved.Source), s.now().Sub(started))

	if needsRequests {
		s.syncLinkRequests(ctx, gen)
	}
}

// settleFallback renders the cached snapshot when allowed and matching,
// otherwise settles as no-access
func (s *Session) settleFallback(ctx context.Context, gen uint64, identity tenancy.Identity, reason string, allowCache bool, started time.Time) {
	var snap *tenancy.Snapshot
	if allowCache {
		snap = s.loadSnapshot(ctx, identity)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	outcome := "no_access"
	source := string(tenancy.SourceNone)
	needsRequests := false
	if snap != nil {
		s.assignLocked(snap.ToContext())
		outcome = "cache_fallback"
		source = string(tenancy.SourceCache)
		needsRequests = s.requestsFor != snap.BusinessID
	} else {
		s.requestsFor = ""
		s.assignLocked(tenancy.NoAccessContext(identity))
	}
	s.mu.Unlock()

	s.deps.Logger.Info("Business context settled without store match",
		zap.String("user_id", identity.UID),
		zap.String("reason", reason),
		zap.String("outcome", outcome))
	s.deps.Metrics.RecordResolution(ctx, outcome, source, s.now().Sub(started))

	if needsRequests {
		s.syncLinkRequests(ctx, gen)
	}
}

func (s *Session) loadSnapshot(ctx context.Context, identity tenancy.Identity) *tenancy.Snapshot {
	if s.deps.Snapshots == nil {
		return nil
	}
	snap, err := s.deps.Snapshots.Load(ctx, identity.UID)
	if err != nil {
		s.deps.Logger.Warn("Failed to load context snapshot",
			zap.String("user_id", identity.UID),
			zap.Error(err))
		return nil
	}
	if !snap.Matches(identity) {
		return nil
	}
	return snap
}

func (s *Session) syncLinkRequests(ctx context.Context, gen uint64) {
	if !s.isCurrent(gen) {
		return
	}
	if err := s.RefreshLinkRequests(ctx); err != nil {
		s.deps.Logger.Warn("Failed to refresh link requests", zap.Error(err))
	}
}

// assignLocked replaces the visible state and wakes AwaitVisible callers
func (s *Session) assignLocked(state tenancy.ResolvedContext) {
	s.state = state
	close(s.changed)
	s.changed = make(chan struct{})
}

// EffectiveBusinessID is the tenant id data reads must be scoped to
func (s *Session) EffectiveBusinessID() string {
	return s.Context().EffectiveBusinessID()
}

// IsViewingOtherBusiness reports whether a linked business is being viewed
func (s *Session) IsViewingOtherBusiness() bool {
	return s.Context().IsViewingOtherBusiness()
}

// SetCurrentViewingBusiness switches data reads to a linked business. An
// empty id goes back to the own business. Ids that are not linked are
// ignored and false is returned.
func (s *Session) SetCurrentViewingBusiness(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	if id == "" {
		next.CurrentViewingBusinessID = ""
		s.assignLocked(next)
		return true
	}
	if _, ok := next.FindLinkedBusiness(id); !ok {
		return false
	}
	next.CurrentViewingBusinessID = id
	s.assignLocked(next)
	return true
}

// AddLinkedBusiness links targetID to the caller's business directly
func (s *Session) AddLinkedBusiness(ctx context.Context, targetID string, accessType tenancy.AccessType) (tenancy.LinkedBusiness, error) {
	current := s.Context()
	switch {
	case !current.HasBusiness():
		return tenancy.LinkedBusiness{}, tenancy.ErrNoActiveBusiness
	case targetID == current.BusinessID:
		return tenancy.LinkedBusiness{}, tenancy.ErrLinkSelf
	}
	if _, ok := current.FindLinkedBusiness(targetID); ok {
		return tenancy.LinkedBusiness{}, tenancy.ErrLinkExists
	}
	if accessType == "" {
		accessType = tenancy.AccessRead
	}
	if !accessType.IsValid() {
		return tenancy.LinkedBusiness{}, shared.NewDomainError("INVALID_ACCESS_TYPE", "Access type must be 'read' or 'readwrite'")
	}

	target, err := s.deps.Businesses.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return tenancy.LinkedBusiness{}, tenancy.ErrBusinessNotFound
		}
		return tenancy.LinkedBusiness{}, fmt.Errorf("load business %s: %w", targetID, err)
	}
	if err := s.deps.Businesses.AddLinkedBusiness(ctx, current.BusinessID, targetID); err != nil {
		return tenancy.LinkedBusiness{}, fmt.Errorf("link business %s: %w", targetID, err)
	}

	entry := tenancy.LinkedBusiness{
		ID:         target.ID,
		Name:       target.Name,
		AccessType: accessType,
		LinkedAt:   s.now(),
	}

	s.mu.Lock()
	if s.state.BusinessID == current.BusinessID {
		if _, ok := s.state.FindLinkedBusiness(targetID); !ok {
			next := s.state.Clone()
			next.LinkedBusinesses = append(next.LinkedBusinesses, entry)
			s.assignLocked(next)
		}
	}
	s.mu.Unlock()

	s.deps.Logger.Info("Linked business added",
		zap.String("business_id", current.BusinessID),
		zap.String("linked_business_id", targetID))
	return entry, nil
}

// RemoveLinkedBusiness unlinks id. Viewing falls back to the own business
// when id was being viewed.
func (s *Session) RemoveLinkedBusiness(ctx context.Context, id string) error {
	current := s.Context()
	if !current.HasBusiness() {
		return tenancy.ErrNoActiveBusiness
	}
	if err := s.deps.Businesses.RemoveLinkedBusiness(ctx, current.BusinessID, id); err != nil {
		return fmt.Errorf("unlink business %s: %w", id, err)
	}

	s.mu.Lock()
	if s.state.BusinessID == current.BusinessID {
		next := s.state.Clone()
		kept := next.LinkedBusinesses[:0]
		for _, lb := range next.LinkedBusinesses {
			if lb.ID != id {
				kept = append(kept, lb)
			}
		}
		next.LinkedBusinesses = kept
		if next.CurrentViewingBusinessID == id {
			next.CurrentViewingBusinessID = ""
		}
		s.assignLocked(next)
	}
	s.mu.Unlock()

	s.deps.Logger.Info("Linked business removed",
		zap.String("business_id", current.BusinessID),
		zap.String("linked_business_id", id))
	return nil
}

// RefreshLinkRequests reloads both pending request lists for the current business
func (s *Session) RefreshLinkRequests(ctx context.Context) error {
	current := s.Context()
	if !current.HasBusiness() {
		return nil
	}
	pending, err := s.deps.Requests.Pending(ctx, current.BusinessID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.BusinessID != current.BusinessID {
		return nil
	}
	next := s.state
	next.IncomingLinkRequests = pending.Incoming
	next.OutgoingLinkRequests = pending.Outgoing
	s.requestsFor = current.BusinessID
	s.assignLocked(next)
	return nil
}

// SendLinkRequest asks targetID for access to its data
func (s *Session) SendLinkRequest(ctx context.Context, targetID string, accessType tenancy.AccessType) (*tenancy.LinkRequest, error) {
	req, err := s.deps.Requests.Send(ctx, s.Context(), targetID, accessType)
	if err != nil {
		return nil, err
	}
	s.refreshAfterMutation(ctx)
	return req, nil
}

// ApproveLinkRequest approves an incoming request
func (s *Session) ApproveLinkRequest(ctx context.Context, requestID string) (*tenancy.LinkRequest, error) {
	req, err := s.deps.Requests.Approve(ctx, s.Context().BusinessID, requestID)
	if err != nil {
		return nil, err
	}
	s.refreshAfterMutation(ctx)
	return req, nil
}

// RejectLinkRequest rejects an incoming request
func (s *Session) RejectLinkRequest(ctx context.Context, requestID string) (*tenancy.LinkRequest, error) {
	req, err := s.deps.Requests.Reject(ctx, s.Context().BusinessID, requestID)
	if err != nil {
		return nil, err
	}
	s.refreshAfterMutation(ctx)
	return req, nil
}

// CancelLinkRequest deletes an outgoing pending request
func (s *Session) CancelLinkRequest(ctx context.Context, requestID string) error {
	if err := s.deps.Requests.Cancel(ctx, s.Context().BusinessID, requestID); err != nil {
		return err
	}
	s.refreshAfterMutation(ctx)
	return nil
}

func (s *Session) refreshAfterMutation(ctx context.Context) {
	if err := s.RefreshLinkRequests(ctx); err != nil {
		s.deps.Logger.Warn("Failed to refresh link requests after update", zap.Error(err))
	}
}
