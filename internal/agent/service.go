package agent

import (
	"clurb/internal/domain"
	"clurb/internal/errors"
	"clurb/internal/metrics"
	"context"
	goErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultChatTitle = "New Chat"
	maxTitleLength   = 50
	maxContentLength = 8000
	// maxSteps bounds model round trips per question; the last one is
	// offered no tools so it has to answer.
	maxSteps = 5
)

const systemPrompt = `You are Clurb AI, a helpful reading assistant for the Clurb social reading app.
You help users understand their reading habits, find information about their books, and interact with their reading community.

When asked about a specific book, use getBookProgress with the book title.
When asked what books they have, use getUserBooks.
When asked about reading activity, use getReadingActivity.
When asked about charts, use getDailyReadingStats.
When asked about friends reading something, use getFriendsReadingBook.

Be conversational and friendly. Use specific numbers and page counts when available.
Keep responses concise. Don't explain which tools you used, just answer.`

const titlePrompt = `Generate a very short title (3-5 words max) for a chat conversation that starts with this message. Only output the title, nothing else. No quotes, no punctuation at the end.

User's first message: %q

Title:`

type Service interface {
	ListChats(ctx context.Context, userID uint64) ([]domain.AgentChat, error)
	CreateChat(ctx context.Context, userID uint64, title string) (*domain.AgentChat, error)
	GetChat(ctx context.Context, id, userID uint64) (*ChatView, error)
	RenameChat(ctx context.Context, id, userID uint64, title string) (*domain.AgentChat, error)
	DeleteChat(ctx context.Context, id, userID uint64) error
	AddMessage(ctx context.Context, id, userID uint64, role, content string) (*domain.AgentMessage, error)
	// Ask stores the question, lets the model answer it with the toolbox
	// and stores the answer.
	Ask(ctx context.Context, id, userID uint64, question string) (*domain.AgentMessage, error)
	GenerateTitle(ctx context.Context, id, userID uint64) (*domain.AgentChat, error)
}

type ChatView struct {
	domain.AgentChat
	Messages []domain.AgentMessage `json:"messages"`
}

type DefaultService struct {
	repository Repository
	toolbox    *Toolbox
	model      llms.Model
	logger     *zap.Logger
	now        func() time.Time
}

// NewService builds the assistant. A nil model keeps chat history working
// and makes Ask and GenerateTitle report 503.
func NewService(repository Repository, toolbox *Toolbox, model llms.Model, logger *zap.Logger) Service {
	return &DefaultService{
		repository: repository,
		toolbox:    toolbox,
		model:      model,
		logger:     logger,
		now:        time.Now,
	}
}

var errNotConfigured = errors.New(http.StatusServiceUnavailable, "Assistant is not configured", nil)

func (s *DefaultService) ListChats(ctx context.Context, userID uint64) ([]domain.AgentChat, error) {
	return s.repository.ListChats(ctx, userID)
}

func (s *DefaultService) CreateChat(ctx context.Context, userID uint64, title string) (*domain.AgentChat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultChatTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, errors.UnprocessableEntity(fmt.Sprintf("title must be at most %d characters", maxTitleLength), nil)
	}

	now := s.now().UTC()
	chat := &domain.AgentChat{UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}
	if err := s.repository.CreateChat(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *DefaultService) GetChat(ctx context.Context, id, userID uint64) (*ChatView, error) {
	chat, err := s.findChat(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	messages, err := s.repository.ListMessages(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	return &ChatView{AgentChat: *chat, Messages: messages}, nil
}

func (s *DefaultService) RenameChat(ctx context.Context, id, userID uint64, title string) (*domain.AgentChat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.BadRequest("Title is required", nil)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, errors.UnprocessableEntity(fmt.Sprintf("title must be at most %d characters", maxTitleLength), nil)
	}
	return s.setTitle(ctx, id, userID, title)
}

func (s *DefaultService) DeleteChat(ctx context.Context, id, userID uint64) error {
	affected, err := s.repository.DeleteChat(ctx, id, userID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.NotFound("Chat not found", nil)
	}
	return nil
}

func (s *DefaultService) AddMessage(ctx context.Context, id, userID uint64, role, content string) (*domain.AgentMessage, error) {
	if role != domain.AgentRoleUser && role != domain.AgentRoleAssistant {
		return nil, errors.BadRequest("Role must be 'user' or 'assistant'", nil)
	}
	if err := validContent(content); err != nil {
		return nil, err
	}
	if _, err := s.findChat(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.store(ctx, id, role, content)
}

func (s *DefaultService) Ask(ctx context.Context, id, userID uint64, question string) (*domain.AgentMessage, error) {
	if s.model == nil {
		return nil, errNotConfigured
	}
	if err := validContent(question); err != nil {
		return nil, err
	}
	chat, err := s.findChat(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.repository.ListMessages(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store(ctx, chat.ID, domain.AgentRoleUser, question); err != nil {
		return nil, err
	}

	answer, err := s.converse(ctx, userID, conversation(history, question))
	if err != nil {
		return nil, errors.New(http.StatusBadGateway, "Assistant is unavailable", err)
	}
	return s.store(ctx, chat.ID, domain.AgentRoleAssistant, answer)
}

func conversation(history []domain.AgentMessage, question string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	for _, m := range history {
		role := llms.ChatMessageTypeHuman
		if m.Role == domain.AgentRoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, m.Content))
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, question))
}

// converse runs the tool loop until the model answers in text.
func (s *DefaultService) converse(ctx context.Context, userID uint64, messages []llms.MessageContent) (string, error) {
	for step := 1; step <= maxSteps; step++ {
		var opts []llms.CallOption
		if step < maxSteps {
			opts = append(opts, llms.WithTools(s.toolbox.Definitions()))
		}

		resp, err := s.model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", goErrors.New("model returned no choices")
		}
		choice := resp.Choices[0]
		if len(choice.ToolCalls) == 0 {
			return strings.TrimSpace(choice.Content), nil
		}

		calls := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		for _, call := range choice.ToolCalls {
			calls.Parts = append(calls.Parts, call)
		}
		messages = append(messages, calls)

		for _, call := range choice.ToolCalls {
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{s.runTool(ctx, userID, call)},
			})
		}
	}
	return "", fmt.Errorf("no answer after %d steps", maxSteps)
}

// runTool turns a tool failure into a result the model can read.
func (s *DefaultService) runTool(ctx context.Context, userID uint64, call llms.ToolCall) llms.ToolCallResponse {
	name := ""
	if call.FunctionCall != nil {
		name = call.FunctionCall.Name
	}

	content, err := s.toolbox.Execute(ctx, userID, call)
	if err != nil {
		metrics.AgentToolCalls.WithLabelValues(name, "error").Inc()
		s.logger.Warn("agent tool failed",
			zap.String("tool", name),
			zap.Uint64("user_id", userID),
			zap.Error(err),
		)
		content = fmt.Sprintf(`{"error":%q}`, "tool failed: "+err.Error())
	} else {
		metrics.AgentToolCalls.WithLabelValues(name, "success").Inc()
	}
	return llms.ToolCallResponse{ToolCallID: call.ID, Name: name, Content: content}
}

func (s *DefaultService) GenerateTitle(ctx context.Context, id, userID uint64) (*domain.AgentChat, error) {
	if s.model == nil {
		return nil, errNotConfigured
	}
	chat, err := s.findChat(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	messages, err := s.repository.ListMessages(ctx, chat.ID)
	if err != nil {
		return nil, err
	}

	first := ""
	for _, m := range messages {
		if m.Role == domain.AgentRoleUser {
			first = m.Content
			break
		}
	}
	if first == "" {
		return nil, errors.BadRequest("No messages to generate title from", nil)
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, s.model, fmt.Sprintf(titlePrompt, first), llms.WithMaxTokens(20))
	if err != nil {
		return nil, errors.New(http.StatusInternalServerError, "Failed to generate title", err)
	}
	title := cleanTitle(text)
	if title == "" {
		title = DefaultChatTitle
	}
	return s.setTitle(ctx, chat.ID, userID, title)
}

// cleanTitle trims whitespace and one pair of surrounding quotes, then
// cuts the title to maxTitleLength runes.
func cleanTitle(text string) string {
	title := strings.TrimSpace(text)
	title = strings.TrimPrefix(title, `"`)
	title = strings.TrimPrefix(title, `'`)
	title = strings.TrimSuffix(title, `"`)
	title = strings.TrimSuffix(title, `'`)
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength])
	}
	return title
}

func (s *DefaultService) setTitle(ctx context.Context, id, userID uint64, title string) (*domain.AgentChat, error) {
	affected, err := s.repository.UpdateTitle(ctx, id, userID, title)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, errors.NotFound("Chat not found", nil)
	}
	return s.findChat(ctx, id, userID)
}

func (s *DefaultService) findChat(ctx context.Context, id, userID uint64) (*domain.AgentChat, error) {
	chat, err := s.repository.FindChat(ctx, id, userID)
	if err != nil {
		if goErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Chat not found", err)
		}
		return nil, err
	}
	return chat, nil
}

func (s *DefaultService) store(ctx context.Context, chatID uint64, role, content string) (*domain.AgentMessage, error) {
	msg := &domain.AgentMessage{
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repository.AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func validContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.BadRequest("Content is required", nil)
	}
	if utf8.RuneCountInString(trimmed) > maxContentLength {
		return errors.UnprocessableEntity(fmt.Sprintf("content must be at most %d characters", maxContentLength), nil)
	}
	return nil
}
