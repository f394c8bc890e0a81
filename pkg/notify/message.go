package notify

import (
	"fmt"

	goslack "github.com/slack-go/slack"

	"github.com/synod-ai/synod/pkg/models"
)

const maxBlockTextLength = 2900

var statusEmoji = map[models.SessionStatus]string{
	models.SessionStatusCompleted: ":white_check_mark:",
	models.SessionStatusFailed:    ":x:",
}

var statusLabel = map[models.SessionStatus]string{
	models.SessionStatusCompleted: "Council Completed",
	models.SessionStatusFailed:    "Council Failed",
}

func sessionURL(sessionID, baseURL string) string {
	return fmt.Sprintf("%s/sessions/%s", baseURL, sessionID)
}

// BuildSessionMessage creates Block Kit blocks for a terminal session
// notification.
func BuildSessionMessage(session *models.Session, baseURL string) []goslack.Block {
	emoji := statusEmoji[session.Status]
	if emoji == "" {
		emoji = ":question:"
	}
	label := statusLabel[session.Status]
	if label == "" {
		label = "Council " + string(session.Status)
	}

	headerText := fmt.Sprintf("%s *%s*\n> %s", emoji, label, truncateForSlack(session.Question))
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		),
	}

	if session.Status == models.SessionStatusCompleted && session.FinalAnswer != nil {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(*session.FinalAnswer), false, false),
			nil, nil,
		))
		blocks = append(blocks, goslack.NewContextBlock("",
			goslack.NewTextBlockObject(goslack.MarkdownType, summaryLine(session), false, false),
		))
	} else if session.Error != "" {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType,
				fmt.Sprintf("*Error:*\n%s", truncateForSlack(session.Error)), false, false),
			nil, nil,
		))
	}

	buttonText := "View Session"
	if session.Status != models.SessionStatusCompleted {
		buttonText = "View Details"
	}
	btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, buttonText, false, false))
	btn.URL = sessionURL(session.ID, baseURL)
	blocks = append(blocks, goslack.NewActionBlock("", btn))

	return blocks
}

// summaryLine renders the one-line deliberation footer.
func summaryLine(session *models.Session) string {
	confidence := "n/a"
	if session.FinalConfidence != nil {
		confidence = fmt.Sprintf("%.2f", *session.FinalConfidence)
	}
	return fmt.Sprintf("Confidence %s | %d members | %d iterations | %d tokens",
		confidence, len(session.Members), len(session.Iterations), session.TotalTokens)
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated — view the full session in the dashboard)_"
}
