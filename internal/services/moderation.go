package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"clipgram/internal/models"
)

var (
	ErrEmptyContent    = errors.New("消息内容不能为空")
	ErrContentTooLong  = errors.New("消息内容超过长度限制")
	ErrContentRejected = errors.New("消息内容未通过审核")
)

// ContentReviewer 审核出站文本内容。拒绝时返回 ErrContentRejected。
// 审核只作用于私信请求的首条内容；已建立会话内的消息不经过它。
type ContentReviewer interface {
	Review(ctx context.Context, content string) error
}

// passthroughReviewer accepts everything. Used when moderation is disabled.
type passthroughReviewer struct{}

// NewPassthroughReviewer 创建一个放行所有内容的 ContentReviewer。
func NewPassthroughReviewer() ContentReviewer {
	return passthroughReviewer{}
}

func (passthroughReviewer) Review(_ context.Context, _ string) error {
	return nil
}

// keywordReviewer rejects content containing any of the blocked terms.
type keywordReviewer struct {
	blocked []string
}

// NewKeywordReviewer 创建一个基于关键词黑名单的 ContentReviewer。
// 匹配不区分大小写。
func NewKeywordReviewer(blocked []string) ContentReviewer {
	normalized := make([]string, 0, len(blocked))
	for _, term := range blocked {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			normalized = append(normalized, term)
		}
	}
	return &keywordReviewer{blocked: normalized}
}

func (r *keywordReviewer) Review(_ context.Context, content string) error {
	lowered := strings.ToLower(content)
	for _, term := range r.blocked {
		if strings.Contains(lowered, term) {
			return ErrContentRejected
		}
	}
	return nil
}

// validateContent 检查消息文本的基本约束：去除空白后非空、长度不超上限。
func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > models.MaxMessageContentRunes {
		return ErrContentTooLong
	}
	return nil
}
