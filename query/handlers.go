package query

import (
	"context"

	"github.com/streamkit/go-linking/core"
)

type LinkStatusReader interface {
	GetLinkStatus(ctx context.Context, userID string, providerID string) (core.LinkStatus, error)
	ListLinkStatuses(ctx context.Context, userID string) ([]core.LinkStatus, error)
}

type GetLinkStatusQuery struct {
	reader LinkStatusReader
}

func NewGetLinkStatusQuery(reader LinkStatusReader) *GetLinkStatusQuery {
	return &GetLinkStatusQuery{reader: reader}
}

func (q *GetLinkStatusQuery) Query(ctx context.Context, msg GetLinkStatusMessage) (core.LinkStatus, error) {
	if q == nil || q.reader == nil {
		return core.LinkStatus{}, queryDependencyError("query: link status reader is required")
	}
	return q.reader.GetLinkStatus(ctx, msg.UserID, msg.ProviderID)
}

type ListLinkStatusesQuery struct {
	reader LinkStatusReader
}

func NewListLinkStatusesQuery(reader LinkStatusReader) *ListLinkStatusesQuery {
	return &ListLinkStatusesQuery{reader: reader}
}

func (q *ListLinkStatusesQuery) Query(ctx context.Context, msg ListLinkStatusesMessage) ([]core.LinkStatus, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: link status reader is required")
	}
	return q.reader.ListLinkStatuses(ctx, msg.UserID)
}
