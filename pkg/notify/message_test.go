package notify

import (
	"strings"
	"testing"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synod-ai/synod/pkg/models"
)

func completedSession() *models.Session {
	answer := "Use write-through caching for the session store."
	confidence := 0.87
	return &models.Session{
		ID:              "sess-1",
		Question:        "Write-through or write-back?",
		Status:          models.SessionStatusCompleted,
		FinalAnswer:     &answer,
		FinalConfidence: &confidence,
		Members:         make([]models.Member, 5),
		Iterations:      make([]models.IterationSnapshot, 2),
		TotalTokens:     12345,
	}
}

func TestBuildSessionMessage_Completed(t *testing.T) {
	blocks := BuildSessionMessage(completedSession(), "https://synod.example.com")

	require.Len(t, blocks, 4)

	header, ok := blocks[0].(*goslack.SectionBlock)
	require.True(t, ok)
	assert.Contains(t, header.Text.Text, ":white_check_mark:")
	assert.Contains(t, header.Text.Text, "Council Completed")
	assert.Contains(t, header.Text.Text, "Write-through or write-back?")

	content := blocks[1].(*goslack.SectionBlock)
	assert.Contains(t, content.Text.Text, "Use write-through caching")

	footer, ok := blocks[2].(*goslack.ContextBlock)
	require.True(t, ok)
	footerText := footer.ContextElements.Elements[0].(*goslack.TextBlockObject)
	assert.Contains(t, footerText.Text, "Confidence 0.87")
	assert.Contains(t, footerText.Text, "5 members")
	assert.Contains(t, footerText.Text, "2 iterations")
	assert.Contains(t, footerText.Text, "12345 tokens")

	action, ok := blocks[3].(*goslack.ActionBlock)
	require.True(t, ok)
	require.Len(t, action.Elements.ElementSet, 1)
	btn, ok := action.Elements.ElementSet[0].(*goslack.ButtonBlockElement)
	require.True(t, ok)
	assert.Equal(t, "View Session", btn.Text.Text)
	assert.Equal(t, "https://synod.example.com/sessions/sess-1", btn.URL)
}

func TestBuildSessionMessage_Failed(t *testing.T) {
	session := &models.Session{
		ID:       "sess-2",
		Question: "A failing question?",
		Status:   models.SessionStatusFailed,
		Error:    "opinions stage: all 3 members failed",
	}
	blocks := BuildSessionMessage(session, "https://synod.example.com")

	require.Len(t, blocks, 3)

	header := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, header.Text.Text, ":x:")
	assert.Contains(t, header.Text.Text, "Council Failed")

	errBlock := blocks[1].(*goslack.SectionBlock)
	assert.Contains(t, errBlock.Text.Text, "all 3 members failed")

	action := blocks[2].(*goslack.ActionBlock)
	btn := action.Elements.ElementSet[0].(*goslack.ButtonBlockElement)
	assert.Equal(t, "View Details", btn.Text.Text)
}

func TestBuildSessionMessage_FailedWithoutError(t *testing.T) {
	session := &models.Session{
		ID:       "sess-3",
		Question: "A question?",
		Status:   models.SessionStatusFailed,
	}
	blocks := BuildSessionMessage(session, "https://synod.example.com")

	// Header and button only; no error block to render.
	require.Len(t, blocks, 2)
}

func TestBuildSessionMessage_TruncatesLongAnswer(t *testing.T) {
	session := completedSession()
	long := strings.Repeat("a", maxBlockTextLength+500)
	session.FinalAnswer = &long

	blocks := BuildSessionMessage(session, "https://synod.example.com")
	content := blocks[1].(*goslack.SectionBlock)
	assert.Contains(t, content.Text.Text, "truncated")
	assert.Less(t, len(content.Text.Text), maxBlockTextLength+200)
}
