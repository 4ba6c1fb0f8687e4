package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"clipgram/internal/middleware"
	"clipgram/internal/services"

	"github.com/gorilla/mux"
)

// UserHandler 封装了用户资料相关的 HTTP 处理器方法。
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile handles GET /users/{handle} and GET /api/v1/users/{handle}.
// 匿名访问时 viewerID 为 0，资料照常返回但不带关注关系。
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := middleware.GetUserIDFromContext(r.Context())

	handle := mux.Vars(r)["handle"]
	profile, err := h.userService.GetUserProfile(r.Context(), viewerID, handle)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			log.Printf("Error fetching profile for handle %s: %v", handle, err)
			writeJSONError(w, "获取用户信息失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, profile)
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}
	handle, ok := middleware.GetHandleFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户信息", http.StatusUnauthorized)
		return
	}

	profile, err := h.userService.GetUserProfile(r.Context(), userID, handle)
	if err != nil {
		log.Printf("Error fetching own profile for user %d: %v", userID, err)
		writeJSONError(w, "获取用户信息失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, profile)
}

// UpdateProfilePayload defines the expected JSON body for profile updates.
type UpdateProfilePayload struct {
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	Bio         string `json:"bio,omitempty"`
}

// UpdateProfile handles PUT /api/v1/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	var payload UpdateProfilePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	user, err := h.userService.UpdateUserProfile(r.Context(), userID, payload.DisplayName, payload.PhotoURL, payload.Bio)
	if err != nil {
		log.Printf("Error updating profile for user %d: %v", userID, err)
		writeJSONError(w, "更新用户资料失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// SearchUsers handles GET /api/v1/users/search?q=...
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSONError(w, "缺少搜索关键词 (q)", http.StatusBadRequest)
		return
	}

	users, err := h.userService.SearchUsers(r.Context(), query, userID)
	if err != nil {
		log.Printf("Error searching users with query %q: %v", query, err)
		writeJSONError(w, "搜索用户失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}
