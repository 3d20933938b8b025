package linking

import (
	"fmt"

	linkingcommand "github.com/streamkit/go-linking/command"
	linkingquery "github.com/streamkit/go-linking/query"
)

type CommandQueryService interface {
	linkingcommand.MutatingService
	linkingquery.LinkStatusReader
}

type Commands struct {
	InitiateConnect *linkingcommand.InitiateConnectCommand
	CompleteConnect *linkingcommand.CompleteConnectCommand
	Disconnect      *linkingcommand.DisconnectCommand
}

type Queries struct {
	GetLinkStatus    *linkingquery.GetLinkStatusQuery
	ListLinkStatuses *linkingquery.ListLinkStatusesQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("linking: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		InitiateConnect: linkingcommand.NewInitiateConnectCommand(service),
		CompleteConnect: linkingcommand.NewCompleteConnectCommand(service),
		Disconnect:      linkingcommand.NewDisconnectCommand(service),
	}
	facade.queries = Queries{
		GetLinkStatus:    linkingquery.NewGetLinkStatusQuery(service),
		ListLinkStatuses: linkingquery.NewListLinkStatusesQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
