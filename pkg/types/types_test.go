package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContent_RoundTrip(t *testing.T) {
	original := NewUserContent("hello there")

	raw, err := EncodeUserContent(original)
	require.NoError(t, err)

	decoded := DecodeUserContent(raw)
	assert.Equal(t, original, decoded)
}

func TestAssistantBlocks_RoundTrip(t *testing.T) {
	original := []AssistantBlock{
		{
			Type:          BlockReasoning,
			Content:       "thinking",
			Status:        BlockSuccess,
			Timestamp:     1700000000000,
			ReasoningTime: &ReasoningTime{Start: 1700000000000, End: 1700000000500},
		},
		{Type: BlockContent, Content: "answer", Status: BlockSuccess, Timestamp: 1700000000600},
		{Type: BlockError, Content: "boom", Status: BlockFailed, Timestamp: 1700000000700},
	}

	raw, err := EncodeBlocks(original)
	require.NoError(t, err)

	assert.Equal(t, original, DecodeBlocks(raw))
}

func TestEncodeBlocks_ReasoningTimeKey(t *testing.T) {
	raw, err := EncodeBlocks([]AssistantBlock{{
		Type:          BlockReasoning,
		Content:       "hmm",
		Status:        BlockSuccess,
		Timestamp:     10,
		ReasoningTime: &ReasoningTime{Start: 10, End: 25},
	}})
	require.NoError(t, err)

	var decoded []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	require.Len(t, decoded, 1)
	assert.JSONEq(t, `{"start":10,"end":25}`, string(decoded[0]["reasoningTime"]))
	assert.NotContains(t, decoded[0], "reasoning_time")
}

func TestEncodeBlocks_NilIsEmptyList(t *testing.T) {
	raw, err := EncodeBlocks(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
	assert.Empty(t, DecodeBlocks(raw))
}

func TestDecodeBlocks_Malformed(t *testing.T) {
	blocks := DecodeBlocks(`[{"type":"content",`)

	require.Len(t, blocks, 1)
	assert.Equal(t, BlockError, blocks[0].Type)
	assert.Equal(t, BlockFailed, blocks[0].Status)
	assert.Equal(t, `[{"type":"content",`, blocks[0].Content)
}

func TestDecodeUserContent_Malformed(t *testing.T) {
	c := DecodeUserContent("not json")
	assert.Equal(t, "not json", c.Text)
}

func TestMessage_Text(t *testing.T) {
	user := &Message{Role: RoleUser, Content: `{"text":"hi","files":[],"links":[],"search":false,"think":false}`}
	assert.Equal(t, "hi", user.Text())

	blocks, err := EncodeBlocks([]AssistantBlock{
		{Type: BlockReasoning, Content: "let me think"},
		{Type: BlockContent, Content: "Hello"},
		{Type: BlockError, Content: "ignored"},
	})
	require.NoError(t, err)

	assistant := &Message{Role: RoleAssistant, Content: blocks}
	assert.Equal(t, "let me think\nHello", assistant.Text())
}

func TestMessageMetadata_Decode(t *testing.T) {
	raw, err := EncodeMetadata(MessageMetadata{ProviderID: "anthropic", TotalTokens: 42})
	require.NoError(t, err)

	m := &Message{Metadata: raw}
	meta := m.ParsedMetadata()
	assert.Equal(t, "anthropic", meta.ProviderID)
	assert.Equal(t, 42, meta.TotalTokens)

	assert.Equal(t, MessageMetadata{}, DecodeMetadata("{oops"))
}

func TestSessionView_JSON(t *testing.T) {
	view := SessionView{
		Session: Session{ID: "s1", AgentID: "deepchat", Title: "New Chat"},
		State:   &SessionState{Status: RuntimeIdle, ProviderID: "openai", ModelID: "gpt-4o"},
	}

	data, err := json.Marshal(view)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "s1", raw["id"])
	assert.Equal(t, "deepchat", raw["agentId"])
	assert.NotContains(t, raw, "projectDir")

	state := raw["state"].(map[string]any)
	assert.Equal(t, "idle", state["status"])
}

func TestModel_Config(t *testing.T) {
	m := Model{ID: "gpt-4o", ContextLength: 128000, MaxOutputTokens: 16384}
	assert.Equal(t, ModelConfig{ContextLength: 128000, MaxTokens: 16384}, m.Config())
}
