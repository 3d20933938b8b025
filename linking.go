// Package linking re-exports the core account linking surface so hosts can
// depend on a single import path.
package linking

import "github.com/streamkit/go-linking/core"

type Config = core.Config

type ReconcileConfig = core.ReconcileConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Provider = core.Provider
type ProviderDescriptor = core.ProviderDescriptor
type Credential = core.Credential
type LinkRecord = core.LinkRecord
type LinkState = core.LinkState
type LinkStatus = core.LinkStatus
type LinkStore = core.LinkStore
type CredentialVault = core.CredentialVault
type PendingAuthStore = core.PendingAuthStore
type AuthorizationIntent = core.AuthorizationIntent
type CallbackParams = core.CallbackParams

var (
	WithLogger           = core.WithLogger
	WithLoggerProvider   = core.WithLoggerProvider
	WithMetricsRecorder  = core.WithMetricsRecorder
	WithErrorFactory     = core.WithErrorFactory
	WithErrorMapper      = core.WithErrorMapper
	WithConfigProvider   = core.WithConfigProvider
	WithOptionsResolver  = core.WithOptionsResolver
	WithRegistry         = core.WithRegistry
	WithLinkStore        = core.WithLinkStore
	WithVault            = core.WithVault
	WithPendingAuthStore = core.WithPendingAuthStore
	WithClock            = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
