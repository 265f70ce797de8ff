package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"unify/internal/entity/merge"
	matchconfig "unify/internal/match/config"
	"unify/internal/match/config/handler"
	policymemory "unify/internal/match/policy/store/memory"
	dErrors "unify/pkg/domain-errors"
	auditmemory "unify/pkg/platform/audit/store/memory"
	"unify/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctx    context.Context
	store  *policymemory.Store
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = policymemory.New()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := matchconfig.NewService(s.store, auditmemory.New(), merge.NewMemoryTx(), logger)

	s.router = chi.NewRouter()
	handler.New(svc, logger).Register(s.router)
}

func (s *HandlerSuite) TestGetFallsBackToDefaults() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/config/match/animal")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[handler.ConfigResponse](s.T(), rr)
	s.Equal("animal", resp.EntityType)
	s.False(resp.EnableAutoMerge, "animal auto-merge ships disabled")
	s.Empty(resp.UpdatedBy)
}

func (s *HandlerSuite) TestGetRejectsUnknownType() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/config/match/spaceship")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
}

func (s *HandlerSuite) TestUpdateRequiresReviewer() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/config/match/person", handler.UpdateConfigRequest{
		AutoMergeThreshold: 0.95,
		ReviewThreshold:    0.75,
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
}

func (s *HandlerSuite) TestUpdateStoresAttributedConfig() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/config/match/person", handler.UpdateConfigRequest{
		AutoMergeThreshold: 0.97,
		ReviewThreshold:    0.8,
		EnableAutoMerge:    true,
		Weights:            map[string]float64{"name": 0.5},
	})
	req = testutil.WithReviewer(req, "admin-1")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[handler.ConfigResponse](s.T(), rr)
	s.Equal("person", resp.EntityType)
	s.Equal(0.97, resp.AutoMergeThreshold)
	s.Equal("admin-1", resp.UpdatedBy)
	s.NotNil(resp.UpdatedAt)
}

func (s *HandlerSuite) TestUpdateRejectsInvertedThresholds() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/config/match/person", handler.UpdateConfigRequest{
		AutoMergeThreshold: 0.7,
		ReviewThreshold:    0.9,
	})
	req = testutil.WithReviewer(req, "admin-1")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
}

func (s *HandlerSuite) TestListIncludesStoredConfigs() {
	update := testutil.NewJSONRequest(s.T(), http.MethodPut, "/config/match/person", handler.UpdateConfigRequest{
		AutoMergeThreshold: 0.97,
		ReviewThreshold:    0.8,
		EnableAutoMerge:    true,
	})
	update = testutil.WithReviewer(update, "admin-1")
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, update), http.StatusOK)

	req := testutil.NewRequest(s.T(), http.MethodGet, "/config/match")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[handler.ConfigListResponse](s.T(), rr)
	s.Require().Len(resp.Configs, 1)
	s.Equal("person", resp.Configs[0].EntityType)
}
