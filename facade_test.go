package linking

import (
	"context"
	"testing"

	linkingcommand "github.com/streamkit/go-linking/command"
	"github.com/streamkit/go-linking/core"
	linkingquery "github.com/streamkit/go-linking/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	svc := &stubFacadeService{}

	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.InitiateConnect == nil || commands.CompleteConnect == nil || commands.Disconnect == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetLinkStatus == nil || queries.ListLinkStatuses == nil {
		t.Fatalf("expected query handlers to be wired")
	}
	if facade.Service() == nil {
		t.Fatalf("expected service accessor to return the wrapped service")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}

	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().Disconnect.Execute(context.Background(), linkingcommand.DisconnectMessage{
		UserID:     "user-1",
		ProviderID: "spotify",
	}); err != nil {
		t.Fatalf("execute disconnect command: %v", err)
	}
	if svc.lastDisconnectUserID != "user-1" || svc.lastDisconnectProviderID != "spotify" {
		t.Fatalf("unexpected disconnect delegation payload")
	}

	status, err := facade.Queries().GetLinkStatus.Query(context.Background(), linkingquery.GetLinkStatusMessage{
		UserID:     "user-1",
		ProviderID: "spotify",
	})
	if err != nil {
		t.Fatalf("query link status: %v", err)
	}
	if status.ProviderID != "spotify" || status.State != core.LinkStateLinked {
		t.Fatalf("unexpected link status query result: %#v", status)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct {
	lastDisconnectUserID     string
	lastDisconnectProviderID string
}

func (s *stubFacadeService) InitiateConnect(context.Context, string, string) (core.AuthorizationIntent, error) {
	return core.AuthorizationIntent{URL: "https://example.com/auth", State: "state"}, nil
}

func (s *stubFacadeService) CompleteConnect(context.Context, string, string, core.CallbackParams) (core.LinkStatus, error) {
	return core.LinkStatus{ProviderID: "spotify", State: core.LinkStateLinked}, nil
}

func (s *stubFacadeService) Disconnect(_ context.Context, userID string, providerID string) (core.LinkStatus, error) {
	s.lastDisconnectUserID = userID
	s.lastDisconnectProviderID = providerID
	return core.LinkStatus{ProviderID: providerID, State: core.LinkStateUnlinked}, nil
}

func (s *stubFacadeService) GetLinkStatus(context.Context, string, string) (core.LinkStatus, error) {
	return core.LinkStatus{ProviderID: "spotify", State: core.LinkStateLinked}, nil
}

func (s *stubFacadeService) ListLinkStatuses(context.Context, string) ([]core.LinkStatus, error) {
	return []core.LinkStatus{{ProviderID: "spotify", State: core.LinkStateLinked}}, nil
}
