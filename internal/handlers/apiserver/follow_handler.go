package apiserver

import (
	"errors"
	"log"
	"net/http"

	"clipgram/internal/middleware"
	"clipgram/internal/services"

	"github.com/gorilla/mux"
)

// FollowHandler handles HTTP requests related to the follow graph.
type FollowHandler struct {
	followService services.FollowService
}

// NewFollowHandler creates a new FollowHandler.
func NewFollowHandler(followService services.FollowService) *FollowHandler {
	return &FollowHandler{followService: followService}
}

// Follow handles POST /api/v1/users/{handle}/follow
func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	handle := mux.Vars(r)["handle"]
	err := h.followService.Follow(r.Context(), followerID, handle)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else if errors.Is(err, services.ErrSelfFollow) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error following %s by user %d: %v", handle, followerID, err)
			writeJSONError(w, "关注失败", http.StatusInternalServerError)
		}
		return
	}
	// 重复关注也返回成功：操作是幂等的
	writeJSONResponse(w, http.StatusNoContent, nil)
}

// Unfollow handles DELETE /api/v1/users/{handle}/follow
func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	handle := mux.Vars(r)["handle"]
	err := h.followService.Unfollow(r.Context(), followerID, handle)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else if errors.Is(err, services.ErrSelfFollow) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error unfollowing %s by user %d: %v", handle, followerID, err)
			writeJSONError(w, "取消关注失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusNoContent, nil)
}

// ListFollowers handles GET /api/v1/users/{handle}/followers
func (h *FollowHandler) ListFollowers(w http.ResponseWriter, r *http.Request) {
	handle := mux.Vars(r)["handle"]
	followers, err := h.followService.ListFollowers(r.Context(), handle)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			log.Printf("Error listing followers of %s: %v", handle, err)
			writeJSONError(w, "获取粉丝列表失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, followers)
}

// ListFollowing handles GET /api/v1/users/{handle}/following
func (h *FollowHandler) ListFollowing(w http.ResponseWriter, r *http.Request) {
	handle := mux.Vars(r)["handle"]
	following, err := h.followService.ListFollowing(r.Context(), handle)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			log.Printf("Error listing following of %s: %v", handle, err)
			writeJSONError(w, "获取关注列表失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, following)
}
