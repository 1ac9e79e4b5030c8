package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/codesight/internal/model"
	"basegraph.app/codesight/internal/service"
	"basegraph.app/codesight/internal/store"
)

var _ = Describe("AuthService", func() {
	var (
		ctx      context.Context
		sessions *mockSessionStore
		svc      service.AuthService
	)

	BeforeEach(func() {
		ctx = context.Background()
		sessions = &mockSessionStore{}
		svc = service.NewAuthService(sessions)
	})

	It("returns a live session", func() {
		sessions.getByIDFn = func(_ context.Context, id int64) (*model.Session, error) {
			return &model.Session{ID: id, UserID: 7, ExpiresAt: time.Now().Add(time.Hour)}, nil
		}

		session, err := svc.ValidateSession(ctx, 3)

		Expect(err).NotTo(HaveOccurred())
		Expect(session.UserID).To(Equal(int64(7)))
	})

	It("rejects an expired session", func() {
		sessions.getByIDFn = func(_ context.Context, id int64) (*model.Session, error) {
			return &model.Session{ID: id, UserID: 7, ExpiresAt: time.Now().Add(-time.Minute)}, nil
		}

		_, err := svc.ValidateSession(ctx, 3)

		Expect(err).To(MatchError(service.ErrSessionExpired))
	})

	It("rejects an unknown session", func() {
		_, err := svc.ValidateSession(ctx, 3)

		Expect(err).To(MatchError(service.ErrSessionNotFound))
	})

	It("wraps store failures", func() {
		sessions.getByIDFn = func(context.Context, int64) (*model.Session, error) {
			return nil, errors.New("connection reset")
		}

		_, err := svc.ValidateSession(ctx, 3)

		Expect(err).To(MatchError(ContainSubstring("loading session")))
		Expect(errors.Is(err, store.ErrNotFound)).To(BeFalse())
	})
})

var _ = Describe("AccountTokenResolver", func() {
	var (
		ctx      context.Context
		accounts *mockAccountStore
		resolver service.TokenResolver
	)

	BeforeEach(func() {
		ctx = context.Background()
		accounts = &mockAccountStore{}
		resolver = service.NewAccountTokenResolver(accounts, "github")
	})

	It("returns the stored access token for the provider", func() {
		var gotProvider string
		accounts.getFn = func(_ context.Context, userID int64, provider string) (*model.Account, error) {
			gotProvider = provider
			token := "gho_secret"
			return &model.Account{UserID: userID, Provider: provider, AccessToken: &token}, nil
		}

		token, err := resolver.ResolveToken(ctx, 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("gho_secret"))
		Expect(gotProvider).To(Equal("github"))
	})

	It("fails with ErrAuthentication when no account is linked", func() {
		_, err := resolver.ResolveToken(ctx, 7)

		Expect(err).To(MatchError(service.ErrAuthentication))
	})

	It("fails with ErrAuthentication when the token is blank", func() {
		accounts.getFn = func(_ context.Context, userID int64, provider string) (*model.Account, error) {
			blank := "  "
			return &model.Account{UserID: userID, Provider: provider, AccessToken: &blank}, nil
		}

		_, err := resolver.ResolveToken(ctx, 7)

		Expect(err).To(MatchError(service.ErrAuthentication))
	})

	It("does not report store outages as authentication failures", func() {
		accounts.getFn = func(context.Context, int64, string) (*model.Account, error) {
			return nil, errors.New("connection reset")
		}

		_, err := resolver.ResolveToken(ctx, 7)

		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, service.ErrAuthentication)).To(BeFalse())
	})
})
