package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"

	"su_report_bot/internal/model"
)

const summarySystemPrompt = "You are a scrum assistant. Write a two or three sentence " +
	"progress summary of the user's sprint tickets in plain language, suitable for a " +
	"status update message. Mention blockers only if ticket statuses suggest them."

// Client wraps the Azure OpenAI chat completion API used to draft the weekly
// report summary.
type Client struct {
	client         *azopenai.Client
	deploymentName string
}

func NewClient(endpoint, apiKey, deploymentName string) (*Client, error) {
	keyCredential := azcore.NewKeyCredential(apiKey)
	client, err := azopenai.NewClientWithKeyCredential(endpoint, keyCredential, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		client:         client,
		deploymentName: deploymentName,
	}, nil
}

// Chat sends one completion request and returns the first choice.
func (c *Client) Chat(ctx context.Context, messages []azopenai.ChatRequestMessageClassification) (string, error) {
	resp, err := c.client.GetChatCompletions(ctx, azopenai.ChatCompletionsOptions{
		DeploymentName: to.Ptr(c.deploymentName),
		Messages:       messages,
		N:              to.Ptr[int32](1),
	}, nil)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return "", nil
	}
	return *resp.Choices[0].Message.Content, nil
}

// SummarizeTickets drafts the Summary section of a weekly report from the
// user's ticket list.
func (c *Client) SummarizeTickets(ctx context.Context, displayName string, tickets []model.TicketRecord) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sprint tickets for %s:\n", displayName)
	for _, t := range tickets {
		fmt.Fprintf(&sb, "- %s %s (status: %s, points: %.0f)\n", t.ID, t.Title, t.Status, t.Points())
	}

	messages := []azopenai.ChatRequestMessageClassification{
		&azopenai.ChatRequestSystemMessage{
			Content: azopenai.NewChatRequestSystemMessageContent(summarySystemPrompt),
		},
		&azopenai.ChatRequestUserMessage{
			Content: azopenai.NewChatRequestUserMessageContent(sb.String()),
		},
	}
	return c.Chat(ctx, messages)
}
