package access

import (
	"context"
	"fmt"

	"artdedup/internal/api"
	"artdedup/internal/apiclient"
)

// Access provides dedup operations regardless of daemon or direct store
// backing.
type Access interface {
	Status(ctx context.Context) (*api.DaemonStatus, error)
	StartScan(ctx context.Context, req api.ScanRequest) (*api.ScanStatus, error)
	ScanStatus(ctx context.Context, handle string) (*api.ScanStatus, error)
	ListScans(ctx context.Context) ([]api.ScanStatus, error)
	CancelScan(ctx context.Context, handle string) (*api.ScanStatus, error)
	CheckRecord(ctx context.Context, id int64) (*api.CheckResponse, error)
	ListCandidates(ctx context.Context, q api.CandidateQuery) (*api.CandidateListResponse, error)
	GetCandidate(ctx context.Context, id int64) (*api.CandidateDetail, error)
	ResolveCandidate(ctx context.Context, id int64, req api.ResolveRequest) (*api.ResolveResponse, error)
	BulkResolve(ctx context.Context, req api.BulkResolveRequest) (*api.BulkResolveResponse, error)
	ResetCandidate(ctx context.Context, id int64) error
	Merge(ctx context.Context, req api.MergeRequest) (*api.MergeSummary, error)
	MergeHistory(ctx context.Context, limit int) ([]api.MergeAudit, error)
	// Remote reports whether operations run inside a daemon process.
	Remote() bool
}

// NewRemote returns an Access backed by the daemon HTTP API.
func NewRemote(client *apiclient.Client) Access {
	return &remoteAccess{Client: client}
}

// NewLocal returns an Access backed by an in-process service.
func NewLocal(svc *api.Service) Access {
	return &localAccess{service: svc}
}

type remoteAccess struct {
	*apiclient.Client
}

func (a *remoteAccess) Remote() bool { return true }

type localAccess struct {
	service *api.Service
}

func (a *localAccess) Remote() bool { return false }

func (a *localAccess) Status(ctx context.Context) (*api.DaemonStatus, error) {
	status, err := a.service.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (a *localAccess) StartScan(ctx context.Context, req api.ScanRequest) (*api.ScanStatus, error) {
	status, err := a.service.StartScan(ctx, req)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (a *localAccess) ScanStatus(_ context.Context, handle string) (*api.ScanStatus, error) {
	status, err := a.service.ScanStatus(handle)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (a *localAccess) ListScans(_ context.Context) ([]api.ScanStatus, error) {
	return a.service.ListScans(), nil
}

func (a *localAccess) CancelScan(_ context.Context, handle string) (*api.ScanStatus, error) {
	status, err := a.service.CancelScan(handle)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (a *localAccess) CheckRecord(ctx context.Context, id int64) (*api.CheckResponse, error) {
	resp, err := a.service.CheckRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *localAccess) ListCandidates(ctx context.Context, q api.CandidateQuery) (*api.CandidateListResponse, error) {
	resp, err := a.service.ListCandidates(ctx, q)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *localAccess) GetCandidate(ctx context.Context, id int64) (*api.CandidateDetail, error) {
	detail, err := a.service.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (a *localAccess) ResolveCandidate(ctx context.Context, id int64, req api.ResolveRequest) (*api.ResolveResponse, error) {
	resp, err := a.service.ResolveCandidate(ctx, id, req)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *localAccess) BulkResolve(ctx context.Context, req api.BulkResolveRequest) (*api.BulkResolveResponse, error) {
	resp, err := a.service.BulkResolve(ctx, req)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *localAccess) ResetCandidate(ctx context.Context, id int64) error {
	return a.service.ResetCandidate(ctx, id)
}

func (a *localAccess) Merge(ctx context.Context, req api.MergeRequest) (*api.MergeSummary, error) {
	return a.service.Merge(ctx, req)
}

func (a *localAccess) MergeHistory(ctx context.Context, limit int) ([]api.MergeAudit, error) {
	return a.service.MergeHistory(ctx, limit)
}

// Session represents an access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Local wraps an in-process service and its cleanup into a session.
func Local(svc *api.Service, closeFn func() error) Session {
	return Session{Access: NewLocal(svc), close: closeFn}
}

// OpenWithFallback tries the daemon first, then falls back to an in-process
// service over the database.
func OpenWithFallback(
	dial func() (*apiclient.Client, error),
	openLocal func() (Session, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{
				Access: NewRemote(client),
				close:  client.Close,
			}, nil
		}
	}

	if openLocal == nil {
		return Session{}, fmt.Errorf("open catalog: no local opener configured")
	}
	session, err := openLocal()
	if err != nil {
		return Session{}, fmt.Errorf("open catalog: %w", err)
	}
	return session, nil
}
