package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[InitiateConnectMessage] = (*InitiateConnectCommand)(nil)
	_ gocmd.Commander[CompleteConnectMessage] = (*CompleteConnectCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]      = (*DisconnectCommand)(nil)
)
