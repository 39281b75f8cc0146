package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"neural-chat-server/internal/model"
	"neural-chat-server/internal/repository"
	"neural-chat-server/pkg/jwt"
	"neural-chat-server/pkg/util"
)

// TokenBlacklist Token 黑名单
// 生产环境由 Redis 实现
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error
	IsTokenBlacklisted(ctx context.Context, tokenHash string) bool
}

// AuthService 认证服务
// 处理用户注册、登录、登出
type AuthService struct {
	userRepo   *repository.UserRepository // 用户数据访问层
	blacklist  TokenBlacklist             // Token 黑名单
	jwtService *jwt.JWTService            // JWT 服务
	validate   *validator.Validate
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	userRepo *repository.UserRepository,
	blacklist TokenBlacklist,
	jwtService *jwt.JWTService,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		blacklist:  blacklist,
		jwtService: jwtService,
		validate:   newValidator(),
	}
}

// SignupRequest 注册请求
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,password"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse 注册/登录成功的响应
type AuthResponse struct {
	AccessToken string      `json:"access_token"` // 访问令牌，同时写入 jwt cookie
	ExpiresIn   int64       `json:"expires_in"`   // 过期时间（秒）
	ExpiresAt   time.Time   `json:"-"`
	User        *model.User `json:"user"`
}

// Signup 用户注册
// 用户名保存为小写，注册成功后直接签发 Token
// 参数:
//   - ctx: 上下文
//   - req: 注册请求
//
// 返回:
//   - *AuthResponse: Token 和用户信息
//   - error: ValidationError / ErrUserExists / ErrEmailExists
func (s *AuthService) Signup(ctx context.Context, req *SignupRequest) (*AuthResponse, error) {
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if verr := s.check(req); verr != nil {
		return nil, verr
	}

	// 1. 检查用户名和邮箱是否已存在
	exists, err := s.userRepo.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}
	exists, err = s.userRepo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	// 2. 对密码进行哈希
	passwordHash, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	// 3. 创建用户
	user := &model.User{
		ID:           util.NewID(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Login 用户登录
// 邮箱不存在和密码错误返回同一个错误
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if verr := s.check(req); verr != nil {
		return nil, verr
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !util.CheckPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// Logout 用户登出
// 将 Token 加入黑名单，TTL 为 Token 的剩余有效期
func (s *AuthService) Logout(ctx context.Context, token string, expireAt time.Time) error {
	if token == "" {
		return nil
	}
	return s.blacklist.BlacklistToken(ctx, util.HashToken(token), expireAt)
}

// Me 获取当前用户信息
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResponse, error) {
	token, expiresAt, err := s.jwtService.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtService.GetAccessExpire().Seconds()),
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

func (s *AuthService) check(req interface{}) *ValidationError {
	return validateStruct(s.validate, req)
}
