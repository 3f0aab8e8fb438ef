package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/consentgate/internal/cache"
	"github.com/dropDatabas3/consentgate/internal/consent"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/http/dto"
	"github.com/dropDatabas3/consentgate/internal/scope"
	"github.com/dropDatabas3/consentgate/internal/session"
	memstore "github.com/dropDatabas3/consentgate/internal/store/adapters/memory"
	"github.com/dropDatabas3/consentgate/internal/trust"
)

// failingRepo envuelve un repo y fuerza fallos de lectura.
type failingRepo struct {
	repository.GrantRepository
	failGet bool
}

func (f *failingRepo) Get(ctx context.Context, userID, clientID string) (*repository.Grant, error) {
	if f.failGet {
		return nil, repository.ErrStoreUnavailable
	}
	return f.GrantRepository.Get(ctx, userID, clientID)
}

// failingTrust siempre falla el lookup de política.
type failingTrust struct{}

func (failingTrust) Policy(context.Context, string) (repository.ClientPolicy, error) {
	return repository.ClientPolicy{}, repository.ErrStoreUnavailable
}

type fixture struct {
	repo    repository.GrantRepository
	tracker *session.Tracker
	svc     InteractionService
	grants  GrantService
}

func newFixture(t *testing.T, repo repository.GrantRepository, trustSrc repository.TrustPolicySource, ttl time.Duration) *fixture {
	t.Helper()
	tracker := session.NewTracker(session.TrackerDeps{Cache: cache.NewMemory(cache.Config{}), TTL: ttl})
	mutator := consent.NewMutator(consent.MutatorDeps{Grants: repo})
	return &fixture{
		repo:    repo,
		tracker: tracker,
		svc: NewInteractionService(InteractionDeps{
			Grants:  repo,
			Trust:   trustSrc,
			Tracker: tracker,
			Mutator: mutator,
		}),
		grants: NewGrantService(GrantDeps{Grants: repo}),
	}
}

func start(userID, clientID string, scopes ...string) dto.StartInteractionRequest {
	return dto.StartInteractionRequest{UserID: userID, ClientID: clientID, Scopes: scopes}
}

func TestStart_FirstEncounterRequiresFullConsent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(), trust.StaticSource{}, time.Minute)

	resp, err := f.svc.Start(ctx, start("u1", "c1", "openid", "email"))
	require.NoError(t, err)
	require.Equal(t, string(session.StateConsentRequired), resp.State)
	require.ElementsMatch(t, []string{"openid", "email"}, resp.MissingScopes)
}

func TestFullFlow_ApproveThenCacheHit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(), trust.StaticSource{}, time.Minute)

	first, err := f.svc.Start(ctx, start("u1", "c1", "openid", "email"))
	require.NoError(t, err)
	require.Equal(t, string(session.StateConsentRequired), first.State)

	decided, err := f.svc.Decide(ctx, first.ID, dto.DecisionRequest{Approved: true})
	require.NoError(t, err)
	require.Equal(t, string(session.StateApproved), decided.State)

	// misma request de nuevo: auto-aprobada sin prompt
	second, err := f.svc.Start(ctx, start("u1", "c1", "openid", "email"))
	require.NoError(t, err)
	require.Equal(t, string(session.StateApproved), second.State)
	require.Equal(t, consent.ReasonCachedGrant, second.Reason)
}

func TestFullFlow_ProgressiveConsentOnlySurfacesNew(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(), trust.StaticSource{}, time.Minute)

	first, err := f.svc.Start(ctx, start("u1", "c1", "openid"))
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, first.ID, dto.DecisionRequest{Approved: true})
	require.NoError(t, err)

	second, err := f.svc.Start(ctx, start("u1", "c1", "openid", "photos:read"))
	require.NoError(t, err)
	require.Equal(t, string(session.StateConsentRequired), second.State)
	require.Equal(t, []string{"photos:read"}, second.MissingScopes)

	// aprobar el incremento mergea, no reemplaza
	_, err = f.svc.Decide(ctx, second.ID, dto.DecisionRequest{Approved: true})
	require.NoError(t, err)

	g, err := f.repo.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	require.True(t, g.Scopes.Equal(scope.NewSet("openid", "photos:read")))
}

func TestStart_TrustPolicyAutoApprovesAndPersists(t *testing.T) {
	ctx := context.Background()
	trusted := trust.StaticSource{
		"first-party": {ClientID: "first-party", SkipConsentScreen: true},
	}
	f := newFixture(t, memstore.New(), trusted, time.Minute)

	resp, err := f.svc.Start(ctx, start("u1", "first-party", "openid", "email"))
	require.NoError(t, err)
	require.Equal(t, string(session.StateApproved), resp.State)
	require.Equal(t, consent.ReasonTrustPolicy, resp.Reason)

	// la auto-aprobación por política NO saltea la persistencia
	g, err := f.repo.Get(ctx, "u1", "first-party")
	require.NoError(t, err)
	require.True(t, g.Scopes.Equal(scope.NewSet("openid", "email")))
}

func TestStart_DenialPersistsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(), trust.StaticSource{}, time.Minute)

	resp, err := f.svc.Start(ctx, start("u1", "c1", "openid"))
	require.NoError(t, err)

	denied, err := f.svc.Decide(ctx, resp.ID, dto.DecisionRequest{Approved: false})
	require.NoError(t, err)
	require.Equal(t, string(session.StateDenied), denied.State)

	_, err = f.repo.Get(ctx, "u1", "c1")
	require.True(t, repository.IsNotFound(err))
}

func TestStart_GrantLookupFailureDegradesToFullConsent(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{GrantRepository: memstore.New(), failGet: true}
	f := newFixture(t, repo, trust.StaticSource{}, time.Minute)

	resp, err := f.svc.Start(ctx, start("u1", "c1", "openid", "email"))
	require.NoError(t, err)
	require.Equal(t, string(session.StateConsentRequired), resp.State)
	require.Equal(t, ReasonStoreDegraded, resp.Reason)
	// degradado: se pide TODO lo solicitado, no un diff parcial
	require.ElementsMatch(t, []string{"openid", "email"}, resp.MissingScopes)
}

func TestStart_TrustLookupFailureNeverAutoApproves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(), failingTrust{}, time.Minute)

	resp, err := f.svc.Start(ctx, start("u1", "first-party", "openid"))
	require.NoError(t, err)
	require.Equal(t, string(session.StateConsentRequired), resp.State)
	require.Equal(t, ReasonStoreDegraded, resp.Reason)
}

func TestDecide_ExpiredSessionRejectsLateSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(), trust.StaticSource{}, 20*time.Millisecond)

	resp, err := f.svc.Start(ctx, start("u1", "c1", "openid"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = f.svc.Decide(ctx, resp.ID, dto.DecisionRequest{Approved: true})
	require.ErrorIs(t, err, ErrSessionExpired)

	// y no quedó nada persistido
	_, err = f.repo.Get(ctx, "u1", "c1")
	require.True(t, repository.IsNotFound(err))
}

func TestDecide_AlreadyDecidedSessionConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(), trust.StaticSource{}, time.Minute)

	resp, err := f.svc.Start(ctx, start("u1", "c1", "openid"))
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, resp.ID, dto.DecisionRequest{Approved: true})
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, resp.ID, dto.DecisionRequest{Approved: true})
	require.ErrorIs(t, err, ErrSessionFinished)
}

func TestDecide_UnknownSessionNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(), trust.StaticSource{}, time.Minute)

	_, err := f.svc.Decide(ctx, "nope", dto.DecisionRequest{Approved: true})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStart_InvalidScopeRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(), trust.StaticSource{}, time.Minute)

	_, err := f.svc.Start(ctx, start("u1", "c1", "Bad Scope!"))
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestStart_InvalidResourceRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(), trust.StaticSource{}, time.Minute)

	req := start("u1", "c1")
	req.ResourceScopes = map[string][]string{"not a uri": {"read"}}
	_, err := f.svc.Start(ctx, req)
	require.ErrorIs(t, err, ErrInvalidResource)
}

func TestStart_EmptyRequestApprovesWithoutGrant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(), trust.StaticSource{}, time.Minute)

	resp, err := f.svc.Start(ctx, start("u1", "c1"))
	require.NoError(t, err)
	require.Equal(t, string(session.StateApproved), resp.State)

	// request vacía no crea un grant vacío
	_, err = f.repo.Get(ctx, "u1", "c1")
	require.True(t, repository.IsNotFound(err))
}

func TestGrantService_RevokeThenConsentAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(), trust.StaticSource{}, time.Minute)

	first, err := f.svc.Start(ctx, start("u1", "c1", "openid"))
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, first.ID, dto.DecisionRequest{Approved: true})
	require.NoError(t, err)

	require.NoError(t, f.grants.Revoke(ctx, "u1", "c1"))
	require.ErrorIs(t, f.grants.Revoke(ctx, "u1", "c1"), ErrGrantNotFound)

	// revocado: la próxima autorización vuelve a pedir consent completo
	again, err := f.svc.Start(ctx, start("u1", "c1", "openid"))
	require.NoError(t, err)
	require.Equal(t, string(session.StateConsentRequired), again.State)
}

func TestGrantService_ListByUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.New(), trust.StaticSource{}, time.Minute)

	for _, clientID := range []string{"c1", "c2"} {
		resp, err := f.svc.Start(ctx, start("u1", clientID, "openid"))
		require.NoError(t, err)
		_, err = f.svc.Decide(ctx, resp.ID, dto.DecisionRequest{Approved: true})
		require.NoError(t, err)
	}

	gs, err := f.grants.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, gs, 2)
}
