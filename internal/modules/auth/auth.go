package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/govorilka/core/internal/middleware"
	"github.com/govorilka/core/internal/models"
	jwtpkg "github.com/govorilka/core/internal/pkg/jwt"
	"github.com/govorilka/core/internal/pkg/response"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenTTL = 7 * 24 * time.Hour

var (
	ErrMasterExists     = errors.New("администратор уже зарегистрирован")
	ErrBadCredentials   = errors.New("неверный логин или пароль")
	ErrWeakPassword     = errors.New("пароль должен быть не короче 6 символов")
	ErrWrongOldPassword = errors.New("старый пароль не подходит")
)

type RegisterDTO struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordDTO struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type loginResponse struct {
	Token string            `json:"token"`
	User  *models.UserModel `json:"user"`
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// HasMaster reports whether the master user has been created yet. The
// admin panel uses it to decide between the setup screen and the login
// screen.
func (s *Service) HasMaster() (bool, error) {
	var count int64
	if err := s.db.Model(&models.UserModel{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Register creates the master user. The system keeps exactly one, so a
// second registration attempt is rejected.
func (s *Service) Register(dto *RegisterDTO) (*models.UserModel, error) {
	if len(dto.Password) < 6 {
		return nil, ErrWeakPassword
	}

	exists, err := s.HasMaster()
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrMasterExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.UserModel{
		Username: dto.Username,
		Name:     dto.Name,
		Password: string(hash),
	}
	if user.Name == "" {
		user.Name = dto.Username
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}

	s.logger.Info("создан мастер-пользователь", zap.String("username", user.Username))
	return &user, nil
}

// Login verifies credentials and issues a JWT. Last login time and IP
// are recorded on the user row.
func (s *Service) Login(dto *LoginDTO, ip string) (string, *models.UserModel, error) {
	var user models.UserModel
	if err := s.db.First(&user, "username = ?", dto.Username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrBadCredentials
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(dto.Password)) != nil {
		return "", nil, ErrBadCredentials
	}

	token, err := jwtpkg.Sign(user.ID, tokenTTL)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"last_login_time": now,
		"last_login_ip":   ip,
	}
	if err := s.db.Model(&user).Updates(updates).Error; err != nil {
		s.logger.Warn("не удалось обновить время входа", zap.Error(err))
	}
	user.LastLoginTime = &now
	user.LastLoginIP = ip

	return token, &user, nil
}

func (s *Service) GetByID(id string) (*models.UserModel, error) {
	var user models.UserModel
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) ChangePassword(userID string, dto *ChangePasswordDTO) error {
	if len(dto.NewPassword) < 6 {
		return ErrWeakPassword
	}

	user, err := s.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(dto.OldPassword)) != nil {
		return ErrWrongOldPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.db.Model(user).Update("password", string(hash)).Error
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	auth := rg.Group("/auth")

	auth.GET("/status", h.status)
	auth.POST("/register", h.register)
	auth.POST("/login", h.login)

	authed := auth.Group("", authMW)
	authed.GET("/me", h.me)
	authed.PUT("/password", h.changePassword)
}

// status GET /auth/status
func (h *Handler) status(c *gin.Context) {
	exists, err := h.svc.HasMaster()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"initialized": exists})
}

// register POST /auth/register
func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.svc.Register(&dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrMasterExists):
			response.Forbidden(c)
		case errors.Is(err, ErrWeakPassword):
			response.UnprocessableEntity(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, user)
}

// login POST /auth/login
func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	token, user, err := h.svc.Login(&dto, c.ClientIP())
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			response.Unauthorized(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, loginResponse{Token: token, User: user})
}

// me GET /auth/me  [auth]
func (h *Handler) me(c *gin.Context) {
	user, err := h.svc.GetByID(middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if user == nil {
		response.Unauthorized(c)
		return
	}
	response.OK(c, user)
}

// changePassword PUT /auth/password  [auth]
func (h *Handler) changePassword(c *gin.Context) {
	var dto ChangePasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err := h.svc.ChangePassword(middleware.CurrentUserID(c), &dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrWrongOldPassword), errors.Is(err, ErrWeakPassword):
			response.UnprocessableEntity(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.NoContent(c)
}
