package apiserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipgram/internal/middleware"
	"clipgram/internal/models"
	"clipgram/internal/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

// stubRequestService 把固定结果喂给 handler，用于校验错误到状态码的映射。
type stubRequestService struct {
	respondErr error
}

func (s *stubRequestService) SubmitRequest(_ context.Context, _ uint, _, _ string) (*models.MessageRequest, error) {
	return nil, nil
}

func (s *stubRequestService) RespondToRequest(_ context.Context, _, _ uint, _ bool) (*models.Thread, error) {
	if s.respondErr != nil {
		return nil, s.respondErr
	}
	return &models.Thread{}, nil
}

func (s *stubRequestService) ListIncomingRequests(_ context.Context, _ uint) ([]*models.MessageRequestWithSender, error) {
	return nil, nil
}

func TestRespondStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"accepted", nil, http.StatusOK},
		{"not found", services.ErrRequestNotFound, http.StatusNotFound},
		{"wrong recipient", services.ErrNotRequestRecipient, http.StatusForbidden},
		// 对已处理请求再做决定是无效操作，归入 400 而不是 409
		{"already resolved", services.ErrRequestResolved, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewMessageRequestHandler(&stubRequestService{respondErr: tc.serviceErr})

			r := mux.NewRouter()
			r.HandleFunc("/message-requests/{requestId:[0-9]+}/accept", handler.Accept).Methods(http.MethodPost)

			req := httptest.NewRequest(http.MethodPost, "/message-requests/42/accept", nil)
			req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, uint(7)))
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}
