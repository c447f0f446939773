package agent

import (
	"clurb/internal/domain"
	"clurb/internal/errors"
	"context"
	goErrors "errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type memoryRepository struct {
	mu       sync.Mutex
	nextID   uint64
	chats    map[uint64]domain.AgentChat
	messages []domain.AgentMessage
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{chats: map[uint64]domain.AgentChat{}}
}

func (r *memoryRepository) ListChats(_ context.Context, userID uint64) ([]domain.AgentChat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AgentChat
	for _, c := range r.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryRepository) CreateChat(_ context.Context, chat *domain.AgentChat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	chat.ID = r.nextID
	r.chats[chat.ID] = *chat
	return nil
}

func (r *memoryRepository) FindChat(_ context.Context, id, userID uint64) (*domain.AgentChat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok || c.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *memoryRepository) UpdateTitle(_ context.Context, id, userID uint64, title string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok || c.UserID != userID {
		return 0, nil
	}
	c.Title = title
	r.chats[id] = c
	return 1, nil
}

func (r *memoryRepository) DeleteChat(_ context.Context, id, userID uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok || c.UserID != userID {
		return 0, nil
	}
	delete(r.chats, id)
	return 1, nil
}

func (r *memoryRepository) ListMessages(_ context.Context, chatID uint64) ([]domain.AgentMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.AgentMessage{}
	for _, m := range r.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepository) AddMessage(_ context.Context, message *domain.AgentMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	message.ID = r.nextID
	r.messages = append(r.messages, *message)
	return nil
}

// scriptedModel replies with its responses in order and records what it
// was sent.
type scriptedModel struct {
	responses []*llms.ContentResponse
	err       error
	calls     [][]llms.MessageContent
	toolsSeen []int
}

func (m *scriptedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	m.calls = append(m.calls, messages)
	m.toolsSeen = append(m.toolsSeen, len(opts.Tools))

	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "done"}}}, nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func textReply(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func toolReply(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{ToolCalls: calls}}}
}

func newAgent(repo Repository, lib Library, model llms.Model) *DefaultService {
	box := NewToolbox(lib, &fakeActivity{}, fakeFriends{})
	return NewService(repo, box, model, zap.NewNop()).(*DefaultService)
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	var apiErr *errors.APIError
	require.True(t, goErrors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, status, apiErr.Status)
}

func TestCreateChat_DefaultTitle(t *testing.T) {
	svc := newAgent(newMemoryRepository(), new(MockLibrary), nil)

	chat, err := svc.CreateChat(context.Background(), 1, "   ")

	require.NoError(t, err)
	assert.Equal(t, DefaultChatTitle, chat.Title)
}

func TestGetChat_OtherUsersChatIsNotFound(t *testing.T) {
	repo := newMemoryRepository()
	svc := newAgent(repo, new(MockLibrary), nil)
	chat, err := svc.CreateChat(context.Background(), 1, "")
	require.NoError(t, err)

	_, err = svc.GetChat(context.Background(), chat.ID, 2)

	requireStatus(t, err, http.StatusNotFound)
}

func TestRenameChat_RequiresTitle(t *testing.T) {
	svc := newAgent(newMemoryRepository(), new(MockLibrary), nil)

	_, err := svc.RenameChat(context.Background(), 1, 1, "")

	requireStatus(t, err, http.StatusBadRequest)
}

func TestDeleteChat_Missing(t *testing.T) {
	svc := newAgent(newMemoryRepository(), new(MockLibrary), nil)

	err := svc.DeleteChat(context.Background(), 9, 1)

	requireStatus(t, err, http.StatusNotFound)
}

func TestAddMessage_RejectsUnknownRole(t *testing.T) {
	repo := newMemoryRepository()
	svc := newAgent(repo, new(MockLibrary), nil)
	chat, _ := svc.CreateChat(context.Background(), 1, "")

	_, err := svc.AddMessage(context.Background(), chat.ID, 1, "system", "hi")

	requireStatus(t, err, http.StatusBadRequest)
}

func TestGetChat_MessagesInOrder(t *testing.T) {
	repo := newMemoryRepository()
	svc := newAgent(repo, new(MockLibrary), nil)
	ctx := context.Background()
	chat, _ := svc.CreateChat(ctx, 1, "")

	_, err := svc.AddMessage(ctx, chat.ID, 1, domain.AgentRoleUser, "hello")
	require.NoError(t, err)
	_, err = svc.AddMessage(ctx, chat.ID, 1, domain.AgentRoleAssistant, "hi there")
	require.NoError(t, err)

	view, err := svc.GetChat(ctx, chat.ID, 1)
	require.NoError(t, err)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "hello", view.Messages[0].Content)
	assert.Equal(t, domain.AgentRoleAssistant, view.Messages[1].Role)
}

func TestAsk_WithoutModel(t *testing.T) {
	svc := newAgent(newMemoryRepository(), new(MockLibrary), nil)

	_, err := svc.Ask(context.Background(), 1, 1, "what am I reading?")

	requireStatus(t, err, http.StatusServiceUnavailable)
}

func TestAsk_RunsToolAndStoresAnswer(t *testing.T) {
	repo := newMemoryRepository()
	lib := new(MockLibrary)
	lib.On("Books", mock.Anything, uint64(1), "", 0).Return([]BookProgress{{Title: "Dune", CurrentPage: 10, TotalPages: 100}}, nil)
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolReply(toolCall("getUserBooks", "{}")),
		textReply("You are reading Dune."),
	}}
	svc := newAgent(repo, lib, model)
	ctx := context.Background()
	chat, _ := svc.CreateChat(ctx, 1, "")

	answer, err := svc.Ask(ctx, chat.ID, 1, "What books do I have?")

	require.NoError(t, err)
	assert.Equal(t, "You are reading Dune.", answer.Content)
	assert.Equal(t, domain.AgentRoleAssistant, answer.Role)

	require.Len(t, model.calls, 2)
	second := model.calls[1]
	last := second[len(second)-1]
	assert.Equal(t, llms.ChatMessageTypeTool, last.Role)
	response := last.Parts[0].(llms.ToolCallResponse)
	assert.Equal(t, "call_getUserBooks", response.ToolCallID)
	assert.Contains(t, response.Content, `"title":"Dune"`)

	view, err := svc.GetChat(ctx, chat.ID, 1)
	require.NoError(t, err)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "What books do I have?", view.Messages[0].Content)
}

func TestAsk_ToolFailureIsReportedToModel(t *testing.T) {
	repo := newMemoryRepository()
	lib := new(MockLibrary)
	lib.On("LastRead", mock.Anything, uint64(1)).Return(nil, goErrors.New("connection reset"))
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolReply(toolCall("getLastReadBook", "")),
		textReply("I could not look that up."),
	}}
	svc := newAgent(repo, lib, model)
	ctx := context.Background()
	chat, _ := svc.CreateChat(ctx, 1, "")

	answer, err := svc.Ask(ctx, chat.ID, 1, "What did I read last?")

	require.NoError(t, err)
	assert.Equal(t, "I could not look that up.", answer.Content)
	second := model.calls[1]
	response := second[len(second)-1].Parts[0].(llms.ToolCallResponse)
	assert.Contains(t, response.Content, "connection reset")
}

func TestAsk_LastStepOffersNoTools(t *testing.T) {
	repo := newMemoryRepository()
	lib := new(MockLibrary)
	lib.On("Books", mock.Anything, uint64(1), "", 0).Return([]BookProgress{}, nil)
	responses := make([]*llms.ContentResponse, 0, maxSteps)
	for i := 0; i < maxSteps-1; i++ {
		responses = append(responses, toolReply(toolCall("getUserBooks", "{}")))
	}
	responses = append(responses, textReply("You have no books yet."))
	model := &scriptedModel{responses: responses}
	svc := newAgent(repo, lib, model)
	ctx := context.Background()
	chat, _ := svc.CreateChat(ctx, 1, "")

	answer, err := svc.Ask(ctx, chat.ID, 1, "books?")

	require.NoError(t, err)
	assert.Equal(t, "You have no books yet.", answer.Content)
	require.Len(t, model.toolsSeen, maxSteps)
	assert.Equal(t, 0, model.toolsSeen[maxSteps-1])
	assert.NotZero(t, model.toolsSeen[0])
}

func TestAsk_ModelErrorKeepsQuestion(t *testing.T) {
	repo := newMemoryRepository()
	model := &scriptedModel{err: goErrors.New("upstream timeout")}
	svc := newAgent(repo, new(MockLibrary), model)
	ctx := context.Background()
	chat, _ := svc.CreateChat(ctx, 1, "")

	_, err := svc.Ask(ctx, chat.ID, 1, "hello?")

	requireStatus(t, err, http.StatusBadGateway)
	view, _ := svc.GetChat(ctx, chat.ID, 1)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, domain.AgentRoleUser, view.Messages[0].Role)
}

func TestAsk_HistoryIsReplayed(t *testing.T) {
	repo := newMemoryRepository()
	model := &scriptedModel{}
	svc := newAgent(repo, new(MockLibrary), model)
	ctx := context.Background()
	chat, _ := svc.CreateChat(ctx, 1, "")
	_, _ = svc.AddMessage(ctx, chat.ID, 1, domain.AgentRoleUser, "first")
	_, _ = svc.AddMessage(ctx, chat.ID, 1, domain.AgentRoleAssistant, "reply")

	_, err := svc.Ask(ctx, chat.ID, 1, "second")

	require.NoError(t, err)
	sent := model.calls[0]
	require.Len(t, sent, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, sent[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, sent[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, sent[2].Role)
	assert.Equal(t, llms.TextParts(llms.ChatMessageTypeHuman, "second"), sent[3])
}

func TestGenerateTitle_CleansModelOutput(t *testing.T) {
	repo := newMemoryRepository()
	model := &scriptedModel{responses: []*llms.ContentResponse{textReply(`  "Tracking My Dune Progress"  `)}}
	svc := newAgent(repo, new(MockLibrary), model)
	ctx := context.Background()
	chat, _ := svc.CreateChat(ctx, 1, "")
	_, _ = svc.AddMessage(ctx, chat.ID, 1, domain.AgentRoleUser, "How far am I in Dune?")

	updated, err := svc.GenerateTitle(ctx, chat.ID, 1)

	require.NoError(t, err)
	assert.Equal(t, "Tracking My Dune Progress", updated.Title)
}

func TestGenerateTitle_NeedsUserMessage(t *testing.T) {
	repo := newMemoryRepository()
	svc := newAgent(repo, new(MockLibrary), &scriptedModel{})
	ctx := context.Background()
	chat, _ := svc.CreateChat(ctx, 1, "")

	_, err := svc.GenerateTitle(ctx, chat.ID, 1)

	requireStatus(t, err, http.StatusBadRequest)
}

func TestCleanTitle_Truncates(t *testing.T) {
	long := "'abcdefghijabcdefghijabcdefghijabcdefghijabcdefghijXYZ'"

	assert.Equal(t, "abcdefghijabcdefghijabcdefghijabcdefghijabcdefghij", cleanTitle(long))
}
