package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/streamkit/go-linking/core"
)

var (
	_ gocmd.Querier[GetLinkStatusMessage, core.LinkStatus]      = (*GetLinkStatusQuery)(nil)
	_ gocmd.Querier[ListLinkStatusesMessage, []core.LinkStatus] = (*ListLinkStatusesQuery)(nil)
)
