package requesttrace

import (
	"context"
	"errors"

	platformauth "github.com/zenGate-Global/venuedesk/platform/go/auth"
)

type contextKey string

const (
	ctxAuditInfo contextKey = "VENUEDESK_REQUEST_TRACE"
)

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// AuditInfo captures request-scoped metadata needed for traceability and auditing.
// UserID is set only when ActorKind is user. TenantID and Role are nil/empty for
// platform operators and system jobs.
type AuditInfo struct {
	ActorKind ActorKind
	UserID    *string
	TenantID  *string
	Role      string
	RequestID string
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	audit, ok := ctx.Value(ctxAuditInfo).(AuditInfo)
	return audit, ok
}

// FromContextOrAnonymous returns the AuditInfo stored on the context, or an anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return Anonymous("")
}

// FromCredentials builds an AuditInfo from authenticated user credentials and a request ID.
func FromCredentials(creds *platformauth.UserCredentials, requestID string) (AuditInfo, error) {
	if creds == nil {
		return AuditInfo{}, errors.New("credentials are required to build audit info")
	}
	if creds.ID == "" {
		return AuditInfo{}, errors.New("user id is required to build audit info")
	}

	return AuditInfo{
		ActorKind: ActorKindUser,
		UserID:    &creds.ID,
		TenantID:  creds.TenantID,
		Role:      creds.Role,
		RequestID: requestID,
	}, nil
}

// Anonymous builds an AuditInfo for unauthenticated requests.
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds an AuditInfo for background jobs and CLI operations.
func System(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}

// Actor renders the initiator as "<kind>" or "<kind>:<user id>" for log fields.
func (a AuditInfo) Actor() string {
	if a.UserID != nil && *a.UserID != "" {
		return string(a.ActorKind) + ":" + *a.UserID
	}
	if a.ActorKind == "" {
		return string(ActorKindAnonymous)
	}
	return string(a.ActorKind)
}

// Tenant returns the tenant id or "" when the actor is not tenant scoped.
func (a AuditInfo) Tenant() string {
	if a.TenantID == nil {
		return ""
	}
	return *a.TenantID
}
