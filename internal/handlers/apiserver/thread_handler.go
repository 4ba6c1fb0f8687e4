package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"clipgram/internal/middleware"
	"clipgram/internal/services"
	"clipgram/internal/storage"

	"github.com/gorilla/mux"
)

// ThreadHandler handles HTTP requests related to threads and messages.
type ThreadHandler struct {
	threadService services.ThreadService
}

// NewThreadHandler creates a new ThreadHandler.
func NewThreadHandler(threadService services.ThreadService) *ThreadHandler {
	return &ThreadHandler{threadService: threadService}
}

// StartThreadPayload defines the expected JSON body for starting a thread.
type StartThreadPayload struct {
	Handle  string `json:"handle"`            // 对方用户
	Content string `json:"content,omitempty"` // 可选的首条消息
}

// StartThread handles POST /api/v1/threads
func (h *ThreadHandler) StartThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	var payload StartThreadPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.Handle == "" {
		writeJSONError(w, "缺少对方用户 (handle)", http.StatusBadRequest)
		return
	}

	thread, err := h.threadService.StartThread(r.Context(), userID, payload.Handle, payload.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrSelfThread), errors.Is(err, services.ErrContentTooLong):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrNotMutual):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		default:
			log.Printf("Error starting thread between %d and %s: %v", userID, payload.Handle, err)
			writeJSONError(w, "创建会话失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, thread)
}

// ListThreads handles GET /api/v1/threads
func (h *ThreadHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	limit, offset := parsePagination(r, 20)
	summaries, err := h.threadService.ListThreads(r.Context(), userID, limit, offset)
	if err != nil {
		log.Printf("Error listing threads for user %d: %v", userID, err)
		writeJSONError(w, "获取会话列表失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, summaries)
}

// PostMessagePayload defines the expected JSON body for posting a message.
type PostMessagePayload struct {
	Content string `json:"content"`
}

// PostMessage handles POST /api/v1/threads/{threadId}/messages
func (h *ThreadHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	threadID, ok := parseThreadID(w, r)
	if !ok {
		return
	}

	var payload PostMessagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	message, err := h.threadService.PostMessage(r.Context(), userID, threadID, payload.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrThreadNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrNotParticipant):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, services.ErrEmptyContent), errors.Is(err, services.ErrContentTooLong):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			log.Printf("Error posting message to thread %d by user %d: %v", threadID, userID, err)
			writeJSONError(w, "发送消息失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, message)
}

// ListMessages handles GET /api/v1/threads/{threadId}/messages
func (h *ThreadHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	threadID, ok := parseThreadID(w, r)
	if !ok {
		return
	}

	limit, offset := parsePagination(r, 50)
	messages, err := h.threadService.ListMessages(r.Context(), userID, threadID, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrThreadNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrNotParticipant):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		default:
			log.Printf("Error listing messages of thread %d for user %d: %v", threadID, userID, err)
			writeJSONError(w, "获取消息失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, messages)
}

func parseThreadID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	threadID, err := storage.StrToUint(mux.Vars(r)["threadId"])
	if err != nil {
		writeJSONError(w, "无效的会话ID", http.StatusBadRequest)
		return 0, false
	}
	return threadID, true
}

// parsePagination 解析 limit/offset 查询参数，limit 超界时回落到默认值。
func parsePagination(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
