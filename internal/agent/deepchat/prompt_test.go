package deepchat

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/pkg/types"
)

func userMsg(t *testing.T, seq int64, text string) *types.Message {
	t.Helper()
	raw, err := types.EncodeUserContent(types.NewUserContent(text))
	require.NoError(t, err)
	return &types.Message{ID: fmt.Sprintf("m%d", seq), OrderSeq: seq, Role: types.RoleUser, Content: raw, Status: types.StatusSent}
}

func assistantMsg(t *testing.T, seq int64, status types.MessageStatus, blocks ...types.AssistantBlock) *types.Message {
	t.Helper()
	raw, err := types.EncodeBlocks(blocks)
	require.NoError(t, err)
	return &types.Message{ID: fmt.Sprintf("m%d", seq), OrderSeq: seq, Role: types.RoleAssistant, Content: raw, Status: status}
}

func contents(msgs []*schema.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Role) + ":" + m.Content
	}
	return out
}

func TestBuildContext_KeepsNewestThatFit(t *testing.T) {
	// ten history messages of 8 tokens each
	var history []*types.Message
	for i := 1; i <= 10; i++ {
		text := fmt.Sprintf("msg%02d", i) + strings.Repeat(".", 27)
		if i%2 == 1 {
			history = append(history, userMsg(t, int64(i), text))
		} else {
			history = append(history, assistantMsg(t, int64(i), types.StatusSent,
				types.AssistantBlock{Type: types.BlockContent, Content: text, Status: types.BlockSuccess}))
		}
	}
	system := "sys!"  // 1 token
	newUser := "next" // 1 token

	msgs := BuildContext(ContextInput{
		History:          history,
		UserText:         newUser,
		SystemPrompt:     system,
		TokenBudget:      1 + 1 + 3*8 + 7 + 100,
		ReserveForOutput: 100,
	})

	require.Len(t, msgs, 5)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[1].Content, "msg08"))
	assert.True(t, strings.HasPrefix(msgs[2].Content, "msg09"))
	assert.True(t, strings.HasPrefix(msgs[3].Content, "msg10"))
	assert.Equal(t, schema.User, msgs[4].Role)
	assert.Equal(t, "next", msgs[4].Content)
	assert.Equal(t, schema.Assistant, msgs[1].Role)
	assert.Equal(t, schema.User, msgs[2].Role)
}

func TestBuildContext_DropsOversizedMessageWhole(t *testing.T) {
	history := []*types.Message{userMsg(t, 0, strings.Repeat("x", 400))}

	msgs := BuildContext(ContextInput{
		History:          history,
		UserText:         "hi",
		SystemPrompt:     "be nice",
		TokenBudget:      50,
		ReserveForOutput: 10,
	})

	assert.Equal(t, []string{"system:be nice", "user:hi"}, contents(msgs))
}

func TestBuildContext_OmitsEmptySystemPrompt(t *testing.T) {
	msgs := BuildContext(ContextInput{UserText: "hello"})
	assert.Equal(t, []string{"user:hello"}, contents(msgs))
}

func TestBuildContext_OnlySentHistory(t *testing.T) {
	history := []*types.Message{
		userMsg(t, 0, "first"),
		assistantMsg(t, 1, types.StatusError,
			types.AssistantBlock{Type: types.BlockContent, Content: "partial"},
			types.AssistantBlock{Type: types.BlockError, Content: "boom"}),
		userMsg(t, 2, "second"),
		assistantMsg(t, 3, types.StatusSent,
			types.AssistantBlock{Type: types.BlockReasoning, Content: "hmm"},
			types.AssistantBlock{Type: types.BlockContent, Content: "answer"},
			types.AssistantBlock{Type: types.BlockError, Content: "ignored"}),
		assistantMsg(t, 4, types.StatusPending),
	}

	msgs := BuildContext(ContextInput{History: history, UserText: "third"})

	assert.Equal(t, []string{
		"user:first",
		"user:second",
		"assistant:hmm\nanswer",
		"user:third",
	}, contents(msgs))
}

func TestBuildContext_NoBudgetKeepsAll(t *testing.T) {
	history := []*types.Message{userMsg(t, 0, strings.Repeat("y", 10000))}
	msgs := BuildContext(ContextInput{History: history, UserText: "q", TokenBudget: 0})
	assert.Len(t, msgs, 2)
}

func TestBuildContext_BudgetExhaustedBySystem(t *testing.T) {
	history := []*types.Message{userMsg(t, 0, "a"), userMsg(t, 1, "b")}
	msgs := BuildContext(ContextInput{
		History:      history,
		UserText:     "q",
		SystemPrompt: strings.Repeat("s", 400),
		TokenBudget:  10,
	})
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "user:q", contents(msgs)[1])
	assert.Len(t, msgs, 2)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 1, estimateTokens("a"))
	assert.Equal(t, 1, estimateTokens("abcd"))
	assert.Equal(t, 2, estimateTokens("abcde"))
}
