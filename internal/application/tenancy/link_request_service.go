package tenancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/shared"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/logger"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LinkRequestService runs the request/approve/reject/cancel workflow between
// two businesses. Guard failures come back as *shared.DomainError values.
type LinkRequestService struct {
	businesses tenancy.BusinessRepository
	requests   tenancy.LinkRequestRepository
	metrics    *telemetry.ContextMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewLinkRequestService creates a new link request service
func NewLinkRequestService(
	businesses tenancy.BusinessRepository,
	requests tenancy.LinkRequestRepository,
	metrics *telemetry.ContextMetrics,
	log *zap.Logger,
) *LinkRequestService {
	return &LinkRequestService{
		businesses: businesses,
		requests:   requests,
		metrics:    metrics,
		logger:     log,
		now:        time.Now,
	}
}

// PendingRequests holds both directions of pending requests for one business
type PendingRequests struct {
	Incoming []tenancy.LinkRequest
	Outgoing []tenancy.LinkRequest
}

// Send asks targetID to grant the caller's business access. The duplicate
// and self guards are checked against origin, the caller's current context.
func (s *LinkRequestService) Send(ctx context.Context, origin tenancy.ResolvedContext, targetID string, accessType tenancy.AccessType) (req *tenancy.LinkRequest, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "link_request", "send",
		telemetry.SpanAttrBusinessID, origin.BusinessID,
		telemetry.SpanAttrTargetID, targetID,
	)
	defer func() { s.finish(ctx, span, "send", err) }()

	switch {
	case !origin.HasBusiness():
		return nil, tenancy.ErrNoActiveBusiness
	case targetID == origin.BusinessID:
		return nil, tenancy.ErrLinkSelf
	}
	if _, linked := origin.FindLinkedBusiness(targetID); linked {
		return nil, tenancy.ErrLinkExists
	}
	if origin.HasPendingOutgoingTo(targetID) {
		return nil, tenancy.ErrLinkPending
	}

	target, err := s.businesses.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, tenancy.ErrBusinessNotFound
		}
		return nil, fmt.Errorf("load target business %s: %w", targetID, err)
	}

	from := &tenancy.Business{ID: origin.BusinessID, Name: origin.BusinessName}
	req, err = tenancy.NewLinkRequest(from, target, accessType)
	if err != nil {
		return nil, err
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create link request: %w", err)
	}

	logger.WithLogger(ctx, s.logger).Info("Link request sent",
		zap.String("link_request_id", req.ID),
		zap.String("from_business_id", req.FromBusinessID),
		zap.String("to_business_id", req.ToBusinessID),
		zap.String("access_type", string(req.AccessType)))
	return req, nil
}

// Approve marks the request approved and gives the requesting business a
// link to the approving business. Both writes commit together, so a failed
// grant leaves the request pending. Only the addressee may approve.
func (s *LinkRequestService) Approve(ctx context.Context, ownBusinessID, requestID string) (req *tenancy.LinkRequest, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "link_request", "approve",
		telemetry.SpanAttrBusinessID, ownBusinessID,
		telemetry.SpanAttrRequestID, requestID,
	)
	defer func() { s.finish(ctx, span, "approve", err) }()

	req, err = s.loadAddressed(ctx, ownBusinessID, requestID)
	if err != nil {
		return nil, err
	}
	if err := req.Approve(s.now()); err != nil {
		return nil, err
	}
	if err := s.requests.Approve(ctx, req); err != nil {
		return nil, s.answerFailed(ctx, req, err)
	}

	logger.WithLogger(ctx, s.logger).Info("Link request approved",
		zap.String("link_request_id", req.ID),
		zap.String("from_business_id", req.FromBusinessID),
		zap.String("to_business_id", req.ToBusinessID))
	return req, nil
}

// Reject marks the request rejected. Only the addressee may reject.
func (s *LinkRequestService) Reject(ctx context.Context, ownBusinessID, requestID string) (req *tenancy.LinkRequest, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "link_request", "reject",
		telemetry.SpanAttrBusinessID, ownBusinessID,
		telemetry.SpanAttrRequestID, requestID,
	)
	defer func() { s.finish(ctx, span, "reject", err) }()

	req, err = s.loadAddressed(ctx, ownBusinessID, requestID)
	if err != nil {
		return nil, err
	}
	if err := req.Reject(s.now()); err != nil {
		return nil, err
	}
	if err := s.requests.UpdateStatus(ctx, req); err != nil {
		return nil, s.answerFailed(ctx, req, err)
	}

	logger.WithLogger(ctx, s.logger).Info("Link request rejected", zap.String("link_request_id", req.ID))
	return req, nil
}

// Cancel deletes a pending request. Only its sender may cancel.
func (s *LinkRequestService) Cancel(ctx context.Context, ownBusinessID, requestID string) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "link_request", "cancel",
		telemetry.SpanAttrBusinessID, ownBusinessID,
		telemetry.SpanAttrRequestID, requestID,
	)
	defer func() { s.finish(ctx, span, "cancel", err) }()

	if ownBusinessID == "" {
		return tenancy.ErrNoActiveBusiness
	}
	req, err := s.load(ctx, requestID)
	if err != nil {
		return err
	}
	if !req.IsSentBy(ownBusinessID) {
		return tenancy.ErrRequestForbidden
	}
	if !req.IsPending() {
		return tenancy.ErrRequestNotPending
	}
	if err := s.requests.Delete(ctx, req.ID); err != nil {
		return fmt.Errorf("delete link request %s: %w", req.ID, err)
	}

	logger.WithLogger(ctx, s.logger).Info("Link request cancelled", zap.String("link_request_id", req.ID))
	return nil
}

// Pending lists pending requests addressed to and sent by businessID
func (s *LinkRequestService) Pending(ctx context.Context, businessID string) (*PendingRequests, error) {
	incoming, err := s.requests.FindPendingIncoming(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("list incoming link requests: %w", err)
	}
	outgoing, err := s.requests.FindPendingOutgoing(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("list outgoing link requests: %w", err)
	}
	return &PendingRequests{Incoming: incoming, Outgoing: outgoing}, nil
}

func (s *LinkRequestService) loadAddressed(ctx context.Context, ownBusinessID, requestID string) (*tenancy.LinkRequest, error) {
	if ownBusinessID == "" {
		return nil, tenancy.ErrNoActiveBusiness
	}
	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsAddressedTo(ownBusinessID) {
		return nil, tenancy.ErrRequestForbidden
	}
	return req, nil
}

// answerFailed maps a failed status write. The store has the final say on
// whether the request was still pending.
func (s *LinkRequestService) answerFailed(ctx context.Context, req *tenancy.LinkRequest, err error) error {
	switch {
	case errors.Is(err, tenancy.ErrRequestNotPending):
		return tenancy.ErrRequestNotPending
	case errors.Is(err, shared.ErrNotFound) && req.Status == tenancy.LinkRequestApproved:
		// The request row is checked first, so this is the requester's business
		logger.WithLogger(ctx, s.logger).Warn("Requesting business vanished before approval",
			zap.String("link_request_id", req.ID),
			zap.String("from_business_id", req.FromBusinessID))
		return tenancy.ErrBusinessNotFound
	case errors.Is(err, shared.ErrNotFound):
		return tenancy.ErrRequestNotFound
	}
	return fmt.Errorf("answer link request %s: %w", req.ID, err)
}

func (s *LinkRequestService) load(ctx context.Context, requestID string) (*tenancy.LinkRequest, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, tenancy.ErrRequestNotFound
		}
		return nil, fmt.Errorf("load link request %s: %w", requestID, err)
	}
	return req, nil
}

// finish ends the operation span and counts the outcome
func (s *LinkRequestService) finish(ctx context.Context, span trace.Span, action string, err error) {
	defer span.End()
	if err == nil {
		telemetry.SetOK(span)
		s.metrics.RecordLinkRequest(ctx, action, "ok")
		return
	}
	telemetry.RecordError(span, err)
	code := shared.CodeOf(err)
	if code == "" {
		code = "error"
		logger.WithLogger(ctx, s.logger).Error("Link request operation failed", zap.String("action", action), zap.Error(err))
	}
	s.metrics.RecordLinkRequest(ctx, action, code)
}
