package command

import (
	"fmt"
	"strings"

	"github.com/streamkit/go-linking/core"
)

const (
	TypeInitiateConnect = "linking.command.connect.initiate"
	TypeCompleteConnect = "linking.command.connect.complete"
	TypeDisconnect      = "linking.command.disconnect"
)

type InitiateConnectMessage struct {
	UserID     string
	ProviderID string
}

func (InitiateConnectMessage) Type() string { return TypeInitiateConnect }

func (m InitiateConnectMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	if strings.TrimSpace(m.ProviderID) == "" {
		return fmt.Errorf("command: provider id is required")
	}
	return nil
}

type CompleteConnectMessage struct {
	UserID     string
	ProviderID string
	Params     core.CallbackParams
}

func (CompleteConnectMessage) Type() string { return TypeCompleteConnect }

func (m CompleteConnectMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	if strings.TrimSpace(m.ProviderID) == "" {
		return fmt.Errorf("command: provider id is required")
	}
	if strings.TrimSpace(m.Params.State) == "" {
		return fmt.Errorf("command: callback state is required")
	}
	return nil
}

type DisconnectMessage struct {
	UserID     string
	ProviderID string
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	if strings.TrimSpace(m.ProviderID) == "" {
		return fmt.Errorf("command: provider id is required")
	}
	return nil
}
