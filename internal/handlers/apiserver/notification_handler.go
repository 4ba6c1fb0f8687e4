package apiserver

import (
	"errors"
	"log"
	"net/http"

	"clipgram/internal/middleware"
	"clipgram/internal/services"
	"clipgram/internal/storage"

	"github.com/gorilla/mux"
)

// NotificationHandler handles HTTP requests related to notifications.
type NotificationHandler struct {
	notificationService services.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationService services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	limit, offset := parsePagination(r, 20)
	notifications, err := h.notificationService.ListNotifications(r.Context(), userID, limit, offset)
	if err != nil {
		log.Printf("Error listing notifications for user %d: %v", userID, err)
		writeJSONError(w, "获取通知列表失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, notifications)
}

// Dismiss handles DELETE /api/v1/notifications/{notificationId}
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	notificationID, ok := parseNotificationID(w, r)
	if !ok {
		return
	}

	if err := h.notificationService.DismissNotification(r.Context(), userID, notificationID); err != nil {
		log.Printf("Error dismissing notification %d for user %d: %v", notificationID, userID, err)
		writeJSONError(w, "删除通知失败", http.StatusInternalServerError)
		return
	}
	// 删除不存在的通知也返回成功：操作是幂等的
	writeJSONResponse(w, http.StatusNoContent, nil)
}

// MarkRead handles POST /api/v1/notifications/{notificationId}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	notificationID, ok := parseNotificationID(w, r)
	if !ok {
		return
	}

	if err := h.notificationService.MarkNotificationRead(r.Context(), userID, notificationID); err != nil {
		if errors.Is(err, services.ErrNotificationNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			log.Printf("Error marking notification %d read for user %d: %v", notificationID, userID, err)
			writeJSONError(w, "标记通知已读失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusNoContent, nil)
}

func parseNotificationID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := storage.StrToUint(mux.Vars(r)["notificationId"])
	if err != nil {
		writeJSONError(w, "无效的通知ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
