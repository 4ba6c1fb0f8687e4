package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"unicode/utf8"

	"clipgram/internal/auth"
	"clipgram/internal/config"
	"clipgram/internal/models"
	"clipgram/internal/storage"

	"gorm.io/gorm"
)

var (
	ErrUserAlreadyExists  = errors.New("用户名或邮箱已存在")
	ErrInvalidCredentials = errors.New("无效的用户名或密码")
	ErrUserNotFound       = errors.New("用户未找到")
	ErrInvalidHandle      = errors.New("无效的用户名")
)

// AuthService 定义了用户认证服务的接口。
type AuthService interface {
	Register(ctx context.Context, handle, email, password, displayName string) (*models.User, error)
	Login(ctx context.Context, handleOrEmail, password string) (token string, user *models.User, err error)
	// Logout 吊销一个尚未过期的 Token。
	Logout(ctx context.Context, tokenString string) error
}

// authService 是 AuthService 的实现。
type authService struct {
	userRepo  storage.UserRepository
	cfg       config.Config // 包含 AuthConfig
	blacklist auth.TokenBlacklist
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(userRepo storage.UserRepository, cfg config.Config, blacklist auth.TokenBlacklist) AuthService {
	return &authService{
		userRepo:  userRepo,
		cfg:       cfg,
		blacklist: blacklist,
	}
}

// Register 处理用户注册逻辑。Handle 大小写不敏感，存储前统一转为小写。
func (s *authService) Register(ctx context.Context, handle, email, password, displayName string) (*models.User, error) {
	handle = models.NormalizeHandle(handle)
	if handle == "" || utf8.RuneCountInString(handle) > 100 {
		return nil, ErrInvalidHandle
	}

	// 检查 handle 是否存在
	_, err := s.userRepo.GetByHandle(ctx, handle)
	if err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("检查用户名时出错: %w", err)
	}

	// 检查邮箱是否存在 (如果邮箱是必须的且唯一的)
	if email != "" {
		_, err = s.userRepo.GetByEmail(ctx, email)
		if err == nil {
			return nil, ErrUserAlreadyExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("检查邮箱时出错: %w", err)
		}
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	newUser := &models.User{
		Handle:       handle,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hashedPassword,
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	return newUser, nil
}

// Login 处理用户登录逻辑。
func (s *authService) Login(ctx context.Context, handleOrEmail, password string) (string, *models.User, error) {
	var user *models.User
	var err error

	// 尝试通过 handle 查找用户
	user, err = s.userRepo.GetByHandle(ctx, handleOrEmail)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 如果 handle 未找到，尝试通过邮箱查找
		user, err = s.userRepo.GetByEmail(ctx, handleOrEmail)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrUserNotFound
		} else if err != nil {
			return "", nil, fmt.Errorf("通过邮箱查找用户失败: %w", err)
		}
	} else if err != nil {
		return "", nil, fmt.Errorf("通过用户名查找用户失败: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Handle, s.cfg.Auth)
	if err != nil {
		return "", nil, fmt.Errorf("生成令牌失败: %w", err)
	}

	return token, user, nil
}

// Logout 将当前 Token 的 JTI 加入黑名单，使其在原始过期时间之前不可再用。
func (s *authService) Logout(ctx context.Context, tokenString string) error {
	if s.blacklist == nil {
		// 未配置黑名单时登出仅是客户端行为
		return nil
	}

	claims, err := auth.ValidateToken(ctx, tokenString, s.cfg.Auth.JWTSecretKey, nil)
	if err != nil {
		// 无效或已过期的 Token 无需吊销
		return nil
	}

	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}

	if err := s.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		log.Printf("Error blacklisting token JTI %s: %v", claims.ID, err)
		return fmt.Errorf("吊销令牌失败: %w", err)
	}
	return nil
}
