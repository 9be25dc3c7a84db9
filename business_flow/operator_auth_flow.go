package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/rsvp-relay/app/dto"
	"github.com/amirphl/rsvp-relay/app/services"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/repository"
	"github.com/amirphl/rsvp-relay/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// OperatorAuthFlow authenticates the operators of the management API
type OperatorAuthFlow interface {
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.LoginResponse, error)
	Logout(ctx context.Context, accessToken string, req *dto.LogoutRequest) error
	// EnsureBootstrapOperator creates the first operator on an empty table
	EnsureBootstrapOperator(ctx context.Context, username, passwordHash string) error
}

type OperatorAuthFlowImpl struct {
	operatorRepo   repository.OperatorRepository
	tokenService   services.TokenService
	accessTokenTTL time.Duration
	logger         *zap.Logger
}

func NewOperatorAuthFlow(operatorRepo repository.OperatorRepository, tokenService services.TokenService, accessTokenTTL time.Duration, logger *zap.Logger) OperatorAuthFlow {
	return &OperatorAuthFlowImpl{
		operatorRepo:   operatorRepo,
		tokenService:   tokenService,
		accessTokenTTL: accessTokenTTL,
		logger:         logger.Named("auth"),
	}
}

func (f *OperatorAuthFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	if req == nil || len(req.Username) == 0 || len(req.Password) == 0 {
		return nil, NewBusinessError("LOGIN_VALIDATION_FAILED", "Username and password are required", ErrIncorrectPassword)
	}

	operator, err := f.operatorRepo.ByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, NewBusinessError("OPERATOR_LOOKUP_FAILED", "Failed to lookup operator", err)
	}
	if operator == nil {
		return nil, NewBusinessError(dto.ErrorOperatorNotFound, "Operator not found", ErrOperatorNotFound)
	}
	if !utils.IsTrue(operator.IsActive) {
		return nil, NewBusinessError(dto.ErrorAccountInactive, "Operator account is inactive", ErrOperatorInactive)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(req.Password)); err != nil {
		return nil, NewBusinessError(dto.ErrorIncorrectPassword, "Incorrect password", ErrIncorrectPassword)
	}

	access, refresh, err := f.tokenService.GenerateOperatorTokens(operator.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	operator.LastLoginAt = utils.UTCNowPtr()
	if err := f.operatorRepo.Update(ctx, operator); err != nil {
		f.logger.Warn("Failed to record last login", zap.Uint("operator_id", operator.ID), zap.Error(err))
	}
	ip := ""
	if metadata != nil {
		ip = metadata.IPAddress
	}
	f.logger.Info("Operator logged in", zap.Uint("operator_id", operator.ID), zap.String("ip", ip))

	return f.loginResponse(*operator, access, refresh), nil
}

func (f *OperatorAuthFlowImpl) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.LoginResponse, error) {
	access, refresh, err := f.tokenService.RefreshOperatorToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError(dto.ErrorInvalidToken, "Invalid refresh token", err)
	}
	claims, err := f.tokenService.ValidateOperatorToken(ctx, access)
	if err != nil {
		return nil, NewBusinessError(dto.ErrorInvalidToken, "Invalid refresh token", err)
	}

	operator, err := f.operatorRepo.ByID(ctx, claims.OperatorID)
	if err != nil {
		return nil, NewBusinessError("OPERATOR_LOOKUP_FAILED", "Failed to lookup operator", err)
	}
	if operator == nil {
		return nil, NewBusinessError(dto.ErrorOperatorNotFound, "Operator not found", ErrOperatorNotFound)
	}
	if !utils.IsTrue(operator.IsActive) {
		_ = f.tokenService.RevokeToken(ctx, refresh)
		return nil, NewBusinessError(dto.ErrorAccountInactive, "Operator account is inactive", ErrOperatorInactive)
	}
	return f.loginResponse(*operator, access, refresh), nil
}

func (f *OperatorAuthFlowImpl) Logout(ctx context.Context, accessToken string, req *dto.LogoutRequest) error {
	if err := f.tokenService.RevokeToken(ctx, accessToken); err != nil {
		return NewBusinessError(dto.ErrorInvalidToken, "Invalid token", err)
	}
	if req != nil && req.RefreshToken != "" {
		if err := f.tokenService.RevokeToken(ctx, req.RefreshToken); err != nil {
			return NewBusinessError(dto.ErrorInvalidToken, "Invalid refresh token", err)
		}
	}
	return nil
}

func (f *OperatorAuthFlowImpl) EnsureBootstrapOperator(ctx context.Context, username, passwordHash string) error {
	username = strings.TrimSpace(username)
	if username == "" || passwordHash == "" {
		return nil
	}
	count, err := f.operatorRepo.Count(ctx, models.OperatorFilter{})
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	operator := &models.Operator{
		UUID:         uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		IsActive:     utils.ToPtr(true),
		CreatedAt:    utils.UTCNow(),
		UpdatedAt:    utils.UTCNow(),
	}
	if err := f.operatorRepo.Save(ctx, operator); err != nil {
		return err
	}
	f.logger.Info("Bootstrap operator created", zap.String("username", username))
	return nil
}

func (f *OperatorAuthFlowImpl) loginResponse(operator models.Operator, access, refresh string) *dto.LoginResponse {
	return &dto.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(f.accessTokenTTL.Seconds()),
		ExpiresAt:    utils.UTCNow().Add(f.accessTokenTTL),
		Operator:     ToOperatorInfo(operator),
	}
}
