package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/handoff-service/internal/auth"
	"github.com/spec-kit/handoff-service/internal/domain"
)

func newTestAuth(t *testing.T) (*AuthService, *fakeAnalystRepo, *fakeTicketRepo, *auth.TokenManager) {
	t.Helper()
	analysts := newFakeAnalystRepo()
	tickets := newFakeTicketRepo()
	tokens := auth.NewTokenManager("test-secret", 0, 0)
	svc := NewAuthService(AuthDependencies{
		AnalystRepo:  analysts,
		TicketRepo:   tickets,
		TokenManager: tokens,
		Logger:       zap.NewNop(),
	})
	return svc, analysts, tickets, tokens
}

func seedCredentials(t *testing.T, analysts *fakeAnalystRepo, username, password string) *domain.Analyst {
	t.Helper()
	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	analyst := &domain.Analyst{
		ID:           "a1",
		Username:     username,
		PasswordHash: hash,
		FullName:     "Alice",
		Role:         domain.RoleAnalyst,
		Active:       true,
	}
	analysts.put(analyst)
	return analyst
}

func TestLoginIssuesAnalystToken(t *testing.T) {
	svc, analysts, _, tokens := newTestAuth(t)
	seedCredentials(t, analysts, "alice", "s3cret-pass")

	result, err := svc.Login(context.Background(), "alice", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Analyst.Username)

	claims, err := tokens.ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenKindAnalyst, claims.Kind)
	assert.Equal(t, "a1", claims.Subject)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, analysts, _, _ := newTestAuth(t)
	seedCredentials(t, analysts, "alice", "s3cret-pass")

	_, err := svc.Login(context.Background(), "alice", "wrong")
	requireCode(t, err, "UNAUTHORIZED")
}

func TestLoginUnknownUsername(t *testing.T) {
	svc, _, _, _ := newTestAuth(t)
	_, err := svc.Login(context.Background(), "nobody", "whatever")
	requireCode(t, err, "UNAUTHORIZED")
}

func TestLoginRejectsEmptyCredentials(t *testing.T) {
	svc, _, _, _ := newTestAuth(t)
	_, err := svc.Login(context.Background(), "  ", "")
	requireCode(t, err, "INVALID_INPUT")
}

func TestMintHandoffTokenScopedToTicket(t *testing.T) {
	svc, _, tickets, tokens := newTestAuth(t)
	tickets.put(pendingTicket("SOL1"))

	token, _, err := svc.MintHandoffToken(context.Background(), "SOL1", "DiscordOp", "discord-7")
	require.NoError(t, err)

	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenKindHandoff, claims.Kind)
	assert.Equal(t, "SOL1", claims.TicketID)
	assert.Equal(t, "DiscordOp", claims.Name)
}

func TestMintHandoffTokenUnknownTicket(t *testing.T) {
	svc, _, _, _ := newTestAuth(t)
	_, _, err := svc.MintHandoffToken(context.Background(), "SOL404", "DiscordOp", "")
	requireCode(t, err, "NOT_FOUND")
}

func TestMintHandoffTokenShortName(t *testing.T) {
	svc, _, tickets, _ := newTestAuth(t)
	tickets.put(pendingTicket("SOL1"))
	_, _, err := svc.MintHandoffToken(context.Background(), "SOL1", " X ", "")
	requireCode(t, err, "INVALID_IDENTITY")
}
