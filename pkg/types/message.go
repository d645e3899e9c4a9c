package types

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageStatus is the persisted status of a message.
type MessageStatus string

const (
	// StatusPending marks the in-flight assistant turn; at most one per session.
	StatusPending MessageStatus = "pending"
	StatusSent    MessageStatus = "sent"
	StatusError   MessageStatus = "error"
)

// Message is one persisted turn of a session. Content and Metadata hold
// serialized JSON; use the accessors to decode them.
type Message struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	OrderSeq  int64         `json:"orderSeq"`
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Status    MessageStatus `json:"status"`
	Metadata  string        `json:"metadata"`
	CreatedAt int64         `json:"createdAt"`
	UpdatedAt int64         `json:"updatedAt"`
}

// UserContent is the structured payload of a user message.
// Only Text is populated today; the rest are placeholders.
type UserContent struct {
	Text   string   `json:"text"`
	Files  []string `json:"files"`
	Links  []string `json:"links"`
	Search bool     `json:"search"`
	Think  bool     `json:"think"`
}

// NewUserContent creates user content carrying only text.
func NewUserContent(text string) UserContent {
	return UserContent{
		Text:  text,
		Files: []string{},
		Links: []string{},
	}
}

// BlockType is the kind of an assistant content block.
type BlockType string

const (
	BlockContent   BlockType = "content"
	BlockReasoning BlockType = "reasoning"
	BlockError     BlockType = "error"
)

// BlockStatus is the lifecycle status of an assistant content block.
type BlockStatus string

const (
	BlockLoading BlockStatus = "loading"
	BlockSuccess BlockStatus = "success"
	BlockCancel  BlockStatus = "cancel"
	BlockFailed  BlockStatus = "error"
)

// AssistantBlock is one typed block of an assistant message. The list of
// blocks is only ever appended to or replaced in place.
type AssistantBlock struct {
	Type      BlockType   `json:"type"`
	Content   string      `json:"content"`
	Status    BlockStatus `json:"status"`
	Timestamp int64       `json:"timestamp"`

	// ReasoningTime is only set on reasoning blocks.
	ReasoningTime *ReasoningTime `json:"reasoningTime,omitempty"`
}

// ReasoningTime records when reasoning started and when the last reasoning delta arrived (unix ms).
type ReasoningTime struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Elapsed returns the reasoning duration in milliseconds.
func (r *ReasoningTime) Elapsed() int64 {
	if r == nil {
		return 0
	}
	return r.End - r.Start
}

// MessageMetadata holds token, timing and model usage facts for a message.
type MessageMetadata struct {
	ProviderID       string  `json:"providerId,omitempty"`
	ModelID          string  `json:"modelId,omitempty"`
	InputTokens      int     `json:"inputTokens,omitempty"`
	OutputTokens     int     `json:"outputTokens,omitempty"`
	TotalTokens      int     `json:"totalTokens,omitempty"`
	FirstTokenTimeMs int64   `json:"firstTokenTimeMs,omitempty"`
	GenerationTimeMs int64   `json:"generationTimeMs,omitempty"`
	TokensPerSecond  float64 `json:"tokensPerSecond,omitempty"`
	FinishReason     string  `json:"finishReason,omitempty"`
}

// EncodeUserContent serializes user content for storage.
func EncodeUserContent(c UserContent) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EncodeBlocks serializes assistant blocks for storage. A nil list encodes as "[]".
func EncodeBlocks(blocks []AssistantBlock) (string, error) {
	if blocks == nil {
		blocks = []AssistantBlock{}
	}
	data, err := json.Marshal(blocks)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EncodeMetadata serializes message metadata for storage.
func EncodeMetadata(m MessageMetadata) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeUserContent parses stored user content. Malformed content is kept
// readable by returning the raw text as the message text.
func DecodeUserContent(raw string) UserContent {
	var c UserContent
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return NewUserContent(raw)
	}
	return c
}

// DecodeBlocks parses stored assistant content. Malformed content never fails:
// it decodes into a single error block that preserves the raw text.
func DecodeBlocks(raw string) []AssistantBlock {
	if strings.TrimSpace(raw) == "" {
		return []AssistantBlock{}
	}
	var blocks []AssistantBlock
	if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
		return []AssistantBlock{{
			Type:    BlockError,
			Content: raw,
			Status:  BlockFailed,
		}}
	}
	if blocks == nil {
		blocks = []AssistantBlock{}
	}
	return blocks
}

// DecodeMetadata parses stored metadata, returning the zero value for empty or malformed input.
func DecodeMetadata(raw string) MessageMetadata {
	var m MessageMetadata
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &m)
	}
	return m
}

// UserContent decodes the content of a user message.
func (m *Message) UserContent() UserContent {
	return DecodeUserContent(m.Content)
}

// Blocks decodes the content of an assistant message.
func (m *Message) Blocks() []AssistantBlock {
	return DecodeBlocks(m.Content)
}

// ParsedMetadata decodes the message metadata.
func (m *Message) ParsedMetadata() MessageMetadata {
	return DecodeMetadata(m.Metadata)
}

// Text flattens the message into the plain text shown to a model: user
// messages yield their text, assistant messages join every content and
// reasoning block with a newline.
func (m *Message) Text() string {
	if m.Role == RoleUser {
		return m.UserContent().Text
	}
	var parts []string
	for _, b := range m.Blocks() {
		if b.Type == BlockContent || b.Type == BlockReasoning {
			parts = append(parts, b.Content)
		}
	}
	return strings.Join(parts, "\n")
}
