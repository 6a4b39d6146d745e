package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"chrona.app/internal/ids"
	"chrona.app/internal/obs"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14
)

// Service owns session issuance: login, token rotation, verification and
// impersonation. All state lives in the store; Service itself is safe for
// concurrent use.
type Service struct {
	store  Store
	now    func() time.Time
	secret []byte

	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service. The signing secret is mandatory.
func NewService(store Store, secret string, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth store is required")
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	svc := &Service{
		store:      store,
		now:        time.Now,
		secret:     []byte(secret),
		issuer:     "chrona",
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// TokenPair represents access and refresh tokens along with their expirations.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Login authenticates credentials, applies the tenant-key decision table and
// mints a token pair. Credential failures of any kind collapse to
// ErrInvalidCredentials; tenant-key failures keep their distinct errors.
func (s *Service) Login(ctx context.Context, email, password, tenantKey string) (TokenPair, Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}

	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Principal{}, ErrInvalidCredentials
		}
		return TokenPair{}, Principal{}, err
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}

	tenant, err := ResolveTenant(ctx, s.store.Tenants(), user, tenantKey)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}

	principal, err := s.principalFor(ctx, user, tenant)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}

	// An abandoned request must not leave a session behind.
	if err := ctx.Err(); err != nil {
		return TokenPair{}, Principal{}, err
	}
	pair, err := s.mintTokens(ctx, principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, principal, nil
}

// Refresh rotates a refresh token and issues a fresh pair. Rotation is
// single-use: of two concurrent calls with the same token exactly one wins
// the compare-and-swap in the store, the other fails with ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, Principal, error) {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, Principal{}, ErrInvalidToken
	}

	tokens := s.store.RefreshTokens()
	record, err := tokens.Find(ctx, tokenID)
	if err != nil {
		return TokenPair{}, Principal{}, ErrInvalidToken
	}
	if record.Revoked || s.now().After(record.ExpiresAt) {
		return TokenPair{}, Principal{}, ErrInvalidToken
	}
	if !secureCompareHash(record.TokenHash, secret) {
		// Wrong secret against a live row: treat the row as burned.
		_ = tokens.Revoke(ctx, record.ID)
		return TokenPair{}, Principal{}, ErrInvalidToken
	}

	// Claim the row before minting anything. Losing the race means a
	// concurrent refresh (or a logout) got there first.
	if err := tokens.Rotate(ctx, record.ID); err != nil {
		obs.ObserveRotation(false)
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			return TokenPair{}, Principal{}, ErrInvalidToken
		}
		return TokenPair{}, Principal{}, err
	}
	obs.ObserveRotation(true)

	user, err := s.store.Users().Find(ctx, record.UserID)
	if err != nil {
		return TokenPair{}, Principal{}, ErrInvalidToken
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, Principal{}, ErrInvalidToken
	}
	var tenant *Tenant
	if !user.System() {
		tenant, err = s.store.Tenants().Find(ctx, user.TenantID)
		if err != nil || tenant.Status != TenantStatusActive {
			return TokenPair{}, Principal{}, ErrInvalidToken
		}
	}

	principal, err := s.principalFor(ctx, user, tenant)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	pair, err := s.mintTokens(ctx, principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, principal, nil
}

// Logout revokes the presented refresh token. Subsequent refresh attempts
// with it fail. Idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return ErrInvalidToken
	}
	tokens := s.store.RefreshTokens()
	record, err := tokens.Find(ctx, tokenID)
	if err != nil {
		return ErrInvalidToken
	}
	if !secureCompareHash(record.TokenHash, secret) {
		return ErrInvalidToken
	}
	return tokens.Revoke(ctx, record.ID)
}

// LogoutAll revokes every refresh token belonging to the user. Used when a
// principal is deactivated.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	return s.store.RefreshTokens().RevokeAllForUser(ctx, userID)
}

// Authenticate verifies an access token and returns the principal encoded in
// it. Impersonation tokens additionally require their session to still be
// open, so a stopped session dies before the token expires.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.verifyAccessToken(accessToken)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	principal := Principal{
		ID:           claims.Subject,
		Email:        claims.Email,
		TenantID:     claims.TenantID,
		Roles:        claims.Roles,
		Capabilities: capabilitySet(claims.Capabilities),
		ActorID:      claims.ActorID,
		TokenID:      claims.ID,
	}
	if principal.Impersonated() {
		if _, err := s.store.Impersonations().FindActiveByTokenID(ctx, claims.ID); err != nil {
			return Principal{}, ErrInvalidToken
		}
	}
	return principal, nil
}

// ImpersonationResult carries the scoped token handed to the actor.
type ImpersonationResult struct {
	Session   *ImpersonationSession
	Token     string
	ExpiresAt time.Time
}

// Impersonate starts a time-boxed session in which actor acts as the target
// principal. The issued token carries the target's identity and tenant scope,
// never the actor's, with the actor recorded for audit. Impersonation tokens
// cannot start further impersonations.
func (s *Service) Impersonate(ctx context.Context, actor Principal, targetID string) (ImpersonationResult, error) {
	if actor.Impersonated() {
		return ImpersonationResult{}, ErrPermissionDenied
	}
	if !actor.HasCapability(CapImpersonate) {
		return ImpersonationResult{}, ErrPermissionDenied
	}
	targetID = strings.TrimSpace(targetID)
	if targetID == "" || targetID == actor.ID {
		return ImpersonationResult{}, ErrInvalidInput
	}

	target, err := s.store.Users().Find(ctx, targetID)
	if err != nil {
		return ImpersonationResult{}, err
	}
	if target.Status != UserStatusActive {
		return ImpersonationResult{}, ErrInvalidInput
	}
	var tenant *Tenant
	if !target.System() {
		tenant, err = s.store.Tenants().Find(ctx, target.TenantID)
		if err != nil {
			return ImpersonationResult{}, err
		}
		if tenant.Status != TenantStatusActive {
			return ImpersonationResult{}, ErrTenantAccessDenied
		}
	}

	principal, err := s.principalFor(ctx, target, tenant)
	if err != nil {
		return ImpersonationResult{}, err
	}
	principal.ActorID = actor.ID

	now := s.now()
	token, jti, exp, err := s.signAccessToken(principal, now)
	if err != nil {
		return ImpersonationResult{}, err
	}
	session := &ImpersonationSession{
		ID:        ids.New(),
		ActorID:   actor.ID,
		TargetID:  target.ID,
		TokenID:   jti,
		StartedAt: now,
	}
	if err := s.store.Impersonations().Create(ctx, session); err != nil {
		return ImpersonationResult{}, err
	}
	return ImpersonationResult{Session: session, Token: token, ExpiresAt: exp}, nil
}

// StopImpersonation ends the session behind an impersonation token. The
// caller reverts to their normal token afterwards; the impersonation token
// stops authenticating immediately.
func (s *Service) StopImpersonation(ctx context.Context, principal Principal) error {
	if !principal.Impersonated() {
		return ErrInvalidInput
	}
	session, err := s.store.Impersonations().FindActiveByTokenID(ctx, principal.TokenID)
	if err != nil {
		return err
	}
	return s.store.Impersonations().End(ctx, session.ID, s.now())
}

// EnsureBuiltins seeds the built-in capability catalog.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.Roles().EnsureCapabilities(ctx, BuiltinCapabilities)
}

// AppendAudit records an action in the append-only log.
func (s *Service) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.now().UTC()
	}
	return s.store.Audit().Append(ctx, entry)
}

// principalFor resolves the effective capability set for a user at this
// moment. Pure function of the current role set; any staleness is bounded by
// the access token TTL.
func (s *Service) principalFor(ctx context.Context, user *User, tenant *Tenant) (Principal, error) {
	roles, err := s.store.Roles().RolesForUser(ctx, user.ID)
	if err != nil {
		return Principal{}, err
	}
	names := make([]string, 0, len(roles))
	var grants []Grant
	for _, role := range roles {
		names = append(names, role.Name)
		list, err := s.store.Roles().GrantsForRole(ctx, role.ID)
		if err != nil {
			return Principal{}, err
		}
		grants = append(grants, list...)
	}
	principal := Principal{
		ID:           user.ID,
		Email:        user.Email,
		Roles:        names,
		Capabilities: EffectivePermissions(grants),
	}
	if tenant != nil {
		principal.TenantID = tenant.ID
	}
	return principal, nil
}

// mintTokens signs the access token and persists the refresh row. Issuance
// either completes fully or fails entirely: a failed insert returns nothing
// to the caller.
func (s *Service) mintTokens(ctx context.Context, principal Principal) (TokenPair, error) {
	now := s.now()
	accessToken, _, accessExp, err := s.signAccessToken(principal, now)
	if err != nil {
		return TokenPair{}, err
	}
	refreshString, record, err := s.generateRefreshToken(principal.ID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.RefreshTokens().Create(ctx, record); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshString,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}
