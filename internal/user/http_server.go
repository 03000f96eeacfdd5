package user

import (
	"errors"
	"net/http"
	"strings"

	"github.com/VehicleVault/VehicleVault/internal/common/logger"
	"github.com/VehicleVault/VehicleVault/internal/common/server"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxUsernameLength = 150

// HTTPServer 账号相关端点：注册 / 个人信息 / 换取 token。
type HTTPServer struct {
	log  logger.Logger
	repo *Repo
}

func NewHTTPServer(db *gorm.DB, log logger.Logger) *HTTPServer {
	return &HTTPServer{
		log:  log,
		repo: NewRepo(db),
	}
}

// Repo 暴露给启动层，用作 token 解析器。
func (s *HTTPServer) Repo() *Repo {
	return s.repo
}

// Register 注册账号端点到路由表。
// /create/ 与 /auth/ 必须保持匿名可达（在鉴权中间件的白名单里），
// /profile/ 的 PUT/PATCH 无论负载如何固定返回 405。
func (s *HTTPServer) Register(r chi.Router) {
	r.Post("/create/", s.handleCreateUser)
	r.Get("/profile/", s.handleGetProfile)
	r.Put("/profile/", s.handleProfileUpdateNotAllowed("PUT"))
	r.Patch("/profile/", s.handleProfileUpdateNotAllowed("PATCH"))
	r.Post("/auth/", s.handleObtainToken)
}

type credentialsPayload struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// validateCredentials 账号字段的全量校验（要么全部通过，要么汇总所有字段错误）。
func validateCredentials(p credentialsPayload) (username, password string, fe server.FieldErrors) {
	fe = server.FieldErrors{}

	if p.Username == nil || strings.TrimSpace(*p.Username) == "" {
		fe.Add("username", "This field is required.")
	} else {
		username = strings.TrimSpace(*p.Username)
		if len(username) > maxUsernameLength {
			fe.Add("username", "Ensure this field has no more than 150 characters.")
		}
	}

	if p.Password == nil || *p.Password == "" {
		fe.Add("password", "This field is required.")
	} else {
		password = *p.Password
		if len(password) < MinPasswordLength {
			fe.Add("password", "Ensure this field has at least 5 characters.")
		}
	}

	return username, password, fe
}

func (s *HTTPServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	if err := server.DecodeJSON(r, &payload); err != nil {
		server.ParseError(w)
		return
	}

	username, password, fe := validateCredentials(payload)
	if !fe.Empty() {
		server.BadRequest(w, fe)
		return
	}

	// 先查重：重名直接给字段错误，不触达写路径
	if _, err := s.repo.FindByUsername(r.Context(), username); err == nil {
		fe.Add("username", "A user with that username already exists.")
		server.BadRequest(w, fe)
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Errorf("find user by username failed: %v", err)
		server.InternalError(w)
		return
	}

	hash, err := HashPassword(password)
	if err != nil {
		s.log.Errorf("hash password failed: %v", err)
		server.InternalError(w)
		return
	}

	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.repo.Create(r.Context(), u); err != nil {
		// 唯一索引兜住并发窗口内的重复注册
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			fe.Add("username", "A user with that username already exists.")
			server.BadRequest(w, fe)
			return
		}
		s.log.Errorf("create user failed: %v", err)
		server.InternalError(w)
		return
	}

	server.WriteJSON(w, http.StatusCreated, userResponse{ID: u.ID, Username: u.Username})
}

func (s *HTTPServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ai, ok := server.AuthFromContext(r.Context())
	if !ok || strings.TrimSpace(ai.UserID) == "" {
		server.Unauthenticated(w, "Authentication credentials were not provided.")
		return
	}

	u, err := s.repo.FindByID(r.Context(), ai.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			server.NotFound(w)
			return
		}
		s.log.Errorf("find user failed: %v", err)
		server.InternalError(w)
		return
	}

	server.WriteJSON(w, http.StatusOK, userResponse{ID: u.ID, Username: u.Username})
}

// handleProfileUpdateNotAllowed profile 不支持变更操作；鉴权之后一律 405。
func (s *HTTPServer) handleProfileUpdateNotAllowed(method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := server.AuthFromContext(r.Context()); !ok {
			server.Unauthenticated(w, "Authentication credentials were not provided.")
			return
		}
		server.MethodNotAllowed(w, method+" method is not allowed")
	}
}

func (s *HTTPServer) handleObtainToken(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	if err := server.DecodeJSON(r, &payload); err != nil {
		server.ParseError(w)
		return
	}

	// 缺字段与凭证不符都走 400，不区分具体是哪个字段错了
	fe := server.FieldErrors{}
	if payload.Username == nil || strings.TrimSpace(*payload.Username) == "" {
		fe.Add("username", "This field is required.")
	}
	if payload.Password == nil || *payload.Password == "" {
		fe.Add("password", "This field is required.")
	}
	if !fe.Empty() {
		server.BadRequest(w, fe)
		return
	}

	username := strings.TrimSpace(*payload.Username)
	u, err := s.repo.FindByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fe.Add(server.NonFieldErrors, "Unable to log in with provided credentials.")
			server.BadRequest(w, fe)
			return
		}
		s.log.Errorf("find user by username failed: %v", err)
		server.InternalError(w)
		return
	}
	if !VerifyPassword(*payload.Password, u.PasswordHash) {
		fe.Add(server.NonFieldErrors, "Unable to log in with provided credentials.")
		server.BadRequest(w, fe)
		return
	}

	t, err := s.repo.RotateToken(r.Context(), u.ID)
	if err != nil {
		s.log.Errorf("rotate token failed: %v", err)
		server.InternalError(w)
		return
	}

	server.WriteJSON(w, http.StatusOK, map[string]string{"token": t.Key})
}
