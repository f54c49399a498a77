package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// Config содержит конфигурацию клиента генерации.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	ImageModel string
	Timeout    time.Duration
	MaxRetries int
}

// Client is the OpenAI-compatible implementation of ChapterStreamer,
// TextGenerator and ImageGenerator.
type Client struct {
	client     *openai.Client
	model      string
	imageModel string
	timeout    time.Duration
	maxRetries int
	logger     zerolog.Logger
}

var (
	_ ChapterStreamer = (*Client)(nil)
	_ TextGenerator   = (*Client)(nil)
	_ ImageGenerator  = (*Client)(nil)
)

// NewClient создает клиента для OpenAI-совместимого API.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generation API key is not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:     openai.NewClientWithConfig(apiConfig),
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		logger:     logger.With().Str("component", "GeneratorClient").Logger(),
	}, nil
}

// StreamChapter opens a streaming completion for the requested chapter.
// No overall timeout is applied to the stream itself: a slow chapter is
// reported per attempt by the caller, not cut off mid-prose.
func (c *Client) StreamChapter(ctx context.Context, req ChapterRequest) (TextStream, error) {
	system, user := BuildChapterPrompt(req)

	c.logger.Debug().
		Int("chapter", req.ChapterNumber).
		Str("type", string(req.ChapterType)).
		Str("phase", string(req.Phase)).
		Msg("requesting chapter stream")

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.8,
		MaxTokens:   4000,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open chapter stream: %w", err)
	}
	return &chatStream{stream: stream}, nil
}

// chatStream adapts the completion stream to TextStream.
type chatStream struct {
	stream *openai.ChatCompletionStream
}

func (s *chatStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *chatStream) Close() error {
	return s.stream.Close()
}

// GenerateText выполняет одноразовый запрос с повторными попытками и
// линейной задержкой между ними.
func (c *Client) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Temperature: 0.7,
			MaxTokens:   1500,
		})
		if err != nil {
			lastErr = err
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("completion attempt failed")
		} else if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			lastErr = errors.New("empty response from generation API")
			c.logger.Warn().Int("attempt", attempt).Msg("empty completion response")
		} else {
			return resp.Choices[0].Message.Content, nil
		}

		if attempt < c.maxRetries {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("generation failed after %d attempts: %w", c.maxRetries, lastErr)
}

// GenerateImage requests a base64 image with a hard deadline. Auxiliary
// services get bounded timeouts and a fallback result; an adventure never
// waits on a picture.
func (c *Client) GenerateImage(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model := c.imageModel
	if model == "" {
		model = openai.CreateImageModelDallE3
	}

	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Model:          model,
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("image generation failed, continuing without image")
		return "", nil
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	return resp.Data[0].B64JSON, nil
}
