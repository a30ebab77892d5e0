package authz

import (
	"context"
	"errors"
	"time"

	"github.com/FuhengZhao/foundationdb/keyset"
	"github.com/FuhengZhao/foundationdb/keyspace"
	"github.com/FuhengZhao/foundationdb/observe"
	"github.com/FuhengZhao/foundationdb/store"
)

// ErrNoKeyStore indicates a Gate was built without a key store.
var ErrNoKeyStore = errors.New("authz: no key store configured")

// ErrNoStore indicates a transaction was requested but the gate fronts no
// storage engine.
var ErrNoStore = errors.New("authz: no store configured")

// Access describes one requested operation for authorization.
type Access struct {
	// Tenant is the tenant context the transaction is scoped to.
	Tenant string

	// Begin and End bound the touched key range, tenant-relative and
	// half-open. A nil End means the single-key range containing Begin.
	Begin []byte
	End   []byte

	// Write distinguishes mutations from reads.
	Write bool

	// SystemKeys is set when the session explicitly requested system-key
	// access. Token-based authorization never grants system privilege, so
	// for token sessions this flag cannot make a system range admissible.
	SystemKeys bool

	// RelaxedSpecial is set when the session requested the relaxed special
	// keyspace mode. Ignored for token sessions, as above.
	RelaxedSpecial bool

	// TenantManagement marks tenant create/delete operations, which are
	// reserved for administrative (non-token) sessions.
	TenantManagement bool
}

// GateConfig configures the enforcement point.
type GateConfig struct {
	// Keys is the rotating trusted key store. Required.
	Keys *keyset.Store

	// Store is the storage engine the gate fronts. Optional; required only
	// for the transaction helpers.
	Store *store.Store

	// Validator overrides the default claim validator.
	Validator *Validator

	// Cache overrides the default token cache.
	Cache *TokenCache

	// Mandatory requires every transaction to present a token. When false
	// the deployment is unauthenticated and tokenless sessions are
	// administrative. Deployment-level policy, not per-request.
	Mandatory bool

	// ClockSkew is passed to the default validator.
	ClockSkew time.Duration

	// CacheTTL is passed to the default token cache.
	CacheTTL time.Duration

	Logger  observe.Logger
	Metrics observe.Metrics
	Tracer  observe.Tracer
}

// Gate is the enforcement point wired into the transaction read/write/commit
// path. Per request it runs token extraction, cached claim validation, the
// keyspace guard, and the tenant guard, in that order, and converts any
// denial into the uniform permission error.
type Gate struct {
	keys      *keyset.Store
	store     *store.Store
	validator *Validator
	cache     *TokenCache
	mandatory bool
	log       observe.Logger
	metrics   observe.Metrics
	tracer    observe.Tracer
}

// NewGate creates an enforcement point.
func NewGate(cfg GateConfig) (*Gate, error) {
	if cfg.Keys == nil {
		return nil, ErrNoKeyStore
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observe.NopTracer()
	}
	if cfg.Validator == nil {
		cfg.Validator = NewValidator(ValidatorConfig{
			ClockSkew: cfg.ClockSkew,
			Logger:    cfg.Logger,
		})
	}
	if cfg.Cache == nil {
		cfg.Cache = NewTokenCache(TokenCacheConfig{
			TTL:     cfg.CacheTTL,
			Metrics: cfg.Metrics,
		})
	}

	return &Gate{
		keys:      cfg.Keys,
		store:     cfg.Store,
		validator: cfg.Validator,
		cache:     cfg.Cache,
		mandatory: cfg.Mandatory,
		log:       cfg.Logger.WithComponent("gate"),
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
	}, nil
}

// Authorize decides whether the operation described by a may proceed under
// the given token. A nil return permits the operation; any error is the
// uniform permission denial. Denials are final: there is no retry within the
// gate, a rejected transaction must be rebuilt by the caller.
func (g *Gate) Authorize(ctx context.Context, token []byte, a Access) error {
	start := time.Now()
	ctx, span := g.tracer.StartSpan(ctx, observe.Op{
		Component: "gate",
		Name:      "authorize",
		Tenant:    a.Tenant,
	})

	err := g.decide(ctx, token, a)
	g.tracer.EndSpan(span, err)
	g.record(ctx, a, err, time.Since(start))
	return err
}

func (g *Gate) decide(ctx context.Context, token []byte, a Access) error {
	if len(token) == 0 {
		// Tokenless session: administrative when the deployment does
		// not mandate authentication, otherwise an implicit denial.
		if g.mandatory {
			return Denied(ErrTokenRequired)
		}
		return nil
	}

	// Token-authenticated session from here on.

	if a.TenantManagement {
		return Denied(ErrTenantManagementForbidden)
	}

	// The keyspace guard runs before and independent of the token
	// outcome: no token, however valid, grants system or special access,
	// and the requested access modes do not soften that.
	if a.Begin != nil || a.End != nil {
		end := a.End
		if end == nil {
			end = keyspace.SingleKeyEnd(a.Begin)
		}
		if kerr := keyspace.Check(a.Begin, end); kerr != nil {
			return DeniedDetail(ErrPrivilegedKeyspaceAccess, kerr.Error())
		}
	}

	res := g.cache.GetOrValidate(ctx, token, g.keys.Current(), g.validator)
	if err := AuthorizeTenant(res, a.Tenant); err != nil {
		return asPermission(err)
	}
	return nil
}

// record emits the decision to metrics and diagnostic logs. The detailed
// reason stays here; the caller only ever sees the uniform denial.
func (g *Gate) record(ctx context.Context, a Access, err error, d time.Duration) {
	if err == nil {
		g.metrics.RecordDecision(ctx, observe.Decision{
			Tenant:    a.Tenant,
			Permitted: true,
		}, d)
		return
	}

	reason := "other"
	diagnostic := err.Error()
	var perr *PermissionError
	if errors.As(err, &perr) {
		reason = reasonLabel(perr.Reason)
		diagnostic = perr.Diagnostic()
	}

	g.metrics.RecordDecision(ctx, observe.Decision{
		Tenant:    a.Tenant,
		Permitted: false,
		Reason:    reason,
	}, d)
	g.log.Info(ctx, "request rejected",
		observe.Field{Key: "tenant", Value: a.Tenant},
		observe.Field{Key: "reason", Value: reason},
		observe.Field{Key: "diagnostic", Value: diagnostic},
		observe.Field{Key: "write", Value: a.Write},
	)
}

// asPermission wraps raw denial reasons into the uniform PermissionError,
// leaving already-wrapped denials untouched.
func asPermission(err error) error {
	if err == nil {
		return nil
	}
	var perr *PermissionError
	if errors.As(err, &perr) {
		return perr
	}
	return Denied(err)
}

// CreateTenant performs the administrative tenant-create operation. Denied
// for any token-authenticated session.
func (g *Gate) CreateTenant(ctx context.Context, token []byte, name string) error {
	if err := g.Authorize(ctx, token, Access{TenantManagement: true, Tenant: name}); err != nil {
		return err
	}
	if g.store == nil {
		return ErrNoStore
	}
	return g.store.CreateTenant(name)
}

// DeleteTenant performs the administrative tenant-delete operation. Denied
// for any token-authenticated session.
func (g *Gate) DeleteTenant(ctx context.Context, token []byte, name string) error {
	if err := g.Authorize(ctx, token, Access{TenantManagement: true, Tenant: name}); err != nil {
		return err
	}
	if g.store == nil {
		return ErrNoStore
	}
	return g.store.DeleteTenant(name)
}
