package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultChatModel is the model used for answer generation
const DefaultChatModel = openai.GPT4oMini

// ErrEmptyQuestion is returned when the question is empty
var ErrEmptyQuestion = errors.New("question cannot be empty")

const answerSystemPrompt = `You answer questions using only the provided context.
If the context does not contain the answer, say you do not know.
Answer in the language of the question.`

// ChatAPI defines the interface for chat completion
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, system, user string) (string, error)
}

type chatAdapter struct {
	client *openai.Client
	model  string
}

func (a *chatAdapter) CreateChatCompletion(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatClient generates grounded answers from retrieved context.
type ChatClient struct {
	api ChatAPI
}

// NewChatClient creates a chat client for answer generation.
func NewChatClient(apiKey, model string) *ChatClient {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClient{
		api: &chatAdapter{client: openai.NewClient(apiKey), model: model},
	}
}

// GenerateAnswer answers a question against a pre-built context block. The
// block is assembled by the retrieval service; this client only formats the
// prompt and relays the completion.
func (c *ChatClient) GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error) {
	if question == "" {
		return "", ErrEmptyQuestion
	}

	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, question)
	answer, err := c.api.CreateChatCompletion(ctx, answerSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	return answer, nil
}
