package query

import (
	"fmt"
	"strings"
)

const (
	TypeGetLinkStatus    = "linking.query.status.get"
	TypeListLinkStatuses = "linking.query.status.list"
)

type GetLinkStatusMessage struct {
	UserID     string
	ProviderID string
}

func (GetLinkStatusMessage) Type() string { return TypeGetLinkStatus }

func (m GetLinkStatusMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("query: user id is required")
	}
	if strings.TrimSpace(m.ProviderID) == "" {
		return fmt.Errorf("query: provider id is required")
	}
	return nil
}

type ListLinkStatusesMessage struct {
	UserID string
}

func (ListLinkStatusesMessage) Type() string { return TypeListLinkStatuses }

func (m ListLinkStatusesMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("query: user id is required")
	}
	return nil
}
