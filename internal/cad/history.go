package cad

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Chat roles stored in history.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// Files are the artifact URLs produced by one AI turn.
type Files struct {
	Preview string `json:"preview"`
	STL     string `json:"stl"`
	SCAD    string `json:"scad"`
}

// ChatMessage is one row of the CAD chat history.
type ChatMessage struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	SessionID     string    `gorm:"size:64;index:idx_chat_session" json:"-"`
	Role          string    `gorm:"size:16;not null" json:"role"`
	Message       string    `gorm:"type:text" json:"message"`
	RefImagePath  string    `gorm:"size:512" json:"ref_image_path,omitempty"`
	SCADCode      *string   `gorm:"type:text" json:"scad_code,omitempty"`
	FilePaths     *Files    `gorm:"serializer:json;type:text" json:"file_paths,omitempty"`
	PromptVersion string    `gorm:"size:32" json:"prompt_version,omitempty"`
	CreatedAt     time.Time `json:"timestamp"`
}

func (ChatMessage) TableName() string {
	return "chat_history"
}

// HistoryStore persists chat turns through GORM.
type HistoryStore struct {
	db *gorm.DB
}

// NewHistoryStore creates a HistoryStore.
func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// AutoMigrate creates the chat_history table.
func (h *HistoryStore) AutoMigrate() error {
	return h.db.AutoMigrate(&ChatMessage{})
}

// AddUserMessage records a user prompt.
func (h *HistoryStore) AddUserMessage(ctx context.Context, sessionID, message, refImagePath string) (*ChatMessage, error) {
	m := &ChatMessage{
		SessionID:    sessionID,
		Role:         RoleUser,
		Message:      message,
		RefImagePath: refImagePath,
	}
	if err := h.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, fmt.Errorf("add user message: %w", err)
	}
	return m, nil
}

// AddAIMessage records a generated model turn.
func (h *HistoryStore) AddAIMessage(ctx context.Context, sessionID, message, scadCode string, files Files, promptVersion string) (*ChatMessage, error) {
	m := &ChatMessage{
		SessionID:     sessionID,
		Role:          RoleAI,
		Message:       message,
		SCADCode:      &scadCode,
		FilePaths:     &files,
		PromptVersion: promptVersion,
	}
	if err := h.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, fmt.Errorf("add ai message: %w", err)
	}
	return m, nil
}

// LatestCode returns the most recent generated code, or "" when none exists.
func (h *HistoryStore) LatestCode(ctx context.Context, sessionID string) (string, error) {
	var m ChatMessage
	err := h.db.WithContext(ctx).
		Where("session_id = ? AND role = ? AND scad_code IS NOT NULL", sessionID, RoleAI).
		Order("id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load latest code: %w", err)
	}
	return *m.SCADCode, nil
}

// NextTurn returns the 1-based number of the next AI turn.
func (h *HistoryStore) NextTurn(ctx context.Context, sessionID string) (int, error) {
	var n int64
	err := h.db.WithContext(ctx).Model(&ChatMessage{}).
		Where("session_id = ? AND role = ?", sessionID, RoleAI).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return int(n) + 1, nil
}

// SessionHistory returns every message of a session in insertion order.
func (h *HistoryStore) SessionHistory(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	var out []ChatMessage
	err := h.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return out, nil
}
