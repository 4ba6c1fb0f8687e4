package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"clipgram/internal/middleware"
	"clipgram/internal/services"
	"clipgram/internal/storage"

	"github.com/gorilla/mux"
)

// MessageRequestHandler handles HTTP requests related to message requests.
type MessageRequestHandler struct {
	requestService services.MessageRequestService
}

// NewMessageRequestHandler creates a new MessageRequestHandler.
func NewMessageRequestHandler(requestService services.MessageRequestService) *MessageRequestHandler {
	return &MessageRequestHandler{requestService: requestService}
}

// SubmitRequestPayload defines the expected JSON body for submitting a request.
type SubmitRequestPayload struct {
	RecipientHandle string `json:"recipientHandle"`
	Content         string `json:"content"`
}

// SubmitRequest handles POST /api/v1/message-requests
func (h *MessageRequestHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	var payload SubmitRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.RecipientHandle == "" {
		writeJSONError(w, "缺少接收者 (recipientHandle)", http.StatusBadRequest)
		return
	}

	request, err := h.requestService.SubmitRequest(r.Context(), senderID, payload.RecipientHandle, payload.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrSelfMessageRequest),
			errors.Is(err, services.ErrMutualFollowers),
			errors.Is(err, services.ErrEmptyContent),
			errors.Is(err, services.ErrContentTooLong),
			errors.Is(err, services.ErrContentRejected):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrRequestPending),
			errors.Is(err, services.ErrRequestDeclined),
			errors.Is(err, services.ErrThreadAlreadyExists):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("Error submitting message request from %d to %s: %v", senderID, payload.RecipientHandle, err)
			writeJSONError(w, "发送私信请求失败", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, request)
}

// ListIncoming handles GET /api/v1/message-requests/pending
func (h *MessageRequestHandler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	requests, err := h.requestService.ListIncomingRequests(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing message requests for user %d: %v", userID, err)
		writeJSONError(w, "获取私信请求列表失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, requests)
}

// Accept handles POST /api/v1/message-requests/{requestId}/accept
func (h *MessageRequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

// Decline handles POST /api/v1/message-requests/{requestId}/decline
func (h *MessageRequestHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *MessageRequestHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	requestID, err := storage.StrToUint(mux.Vars(r)["requestId"])
	if err != nil {
		writeJSONError(w, "无效的请求ID", http.StatusBadRequest)
		return
	}

	thread, err := h.requestService.RespondToRequest(r.Context(), userID, requestID, accept)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRequestNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrNotRequestRecipient):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, services.ErrRequestResolved):
			// 对已处理请求再做决定是无效操作，不是资源冲突
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			log.Printf("Error responding to message request %d by user %d: %v", requestID, userID, err)
			writeJSONError(w, "处理私信请求失败", http.StatusInternalServerError)
		}
		return
	}

	if accept {
		writeJSONResponse(w, http.StatusOK, thread)
		return
	}
	writeJSONResponse(w, http.StatusNoContent, nil)
}
