package agent

import (
	"clurb/internal/activity"
	"clurb/internal/domain"
	"context"
	"encoding/json"
	goErrors "errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"gorm.io/gorm"
)

const (
	defaultDays      = 7
	maxDays          = 365
	defaultNoteLimit = 10
	maxNoteLimit     = 50
	bookMatchLimit   = 5
)

type ActivitySource interface {
	Summary(ctx context.Context, userID uint64, days int) (*activity.Summary, error)
	DailyPages(ctx context.Context, userID uint64, days int) ([]activity.DailyPages, error)
}

type FriendSource interface {
	Friends(ctx context.Context, userID uint64) ([]domain.Profile, error)
}

type toolFunc func(ctx context.Context, userID uint64, args json.RawMessage) (any, error)

type tool struct {
	definition llms.FunctionDefinition
	run        toolFunc
}

// Toolbox exposes read-only views of a user's reading data as model tools.
type Toolbox struct {
	library  Library
	activity ActivitySource
	friends  FriendSource
	tools    []tool
	byName   map[string]tool
}

func NewToolbox(library Library, activity ActivitySource, friends FriendSource) *Toolbox {
	t := &Toolbox{library: library, activity: activity, friends: friends}
	t.tools = []tool{
		{fn("getUserBooks", "Get all books in the user's library with reading progress", noParams()), t.userBooks},
		{fn("getBookProgress", "Get the user's reading progress for a specific book by title",
			params(prop("bookTitle", "string", "The title or partial title of the book"), "bookTitle")), t.bookProgress},
		{fn("getLastReadBook", "Get the last book the user was reading", noParams()), t.lastReadBook},
		{fn("getReadingActivity", "Get a reading activity summary for the last number of days",
			params(prop("days", "integer", "Number of days to look back"))), t.readingActivity},
		{fn("getDailyReadingStats", "Get daily page counts over the last number of days, for charts",
			params(prop("days", "integer", "Number of days to look back"))), t.dailyReadingStats},
		{fn("getFriendNotes", "Get sticky notes other readers left in the user's own books",
			params(prop("limit", "integer", "Maximum number of notes to return"))), t.friendNotes},
		{fn("getFriendProgress", "Get a friend's reading progress on books shared with the user",
			params(map[string]any{
				"friendUsername": map[string]any{"type": "string", "description": "The friend's username"},
				"bookTitle":      map[string]any{"type": "string", "description": "Optional book title to filter by"},
			}, "friendUsername")), t.friendProgress},
		{fn("getFriendsReadingBook", "Find who else is reading a specific book",
			params(prop("bookTitle", "string", "The title or partial title of the book"), "bookTitle")), t.friendsReadingBook},
		{fn("getUserFriends", "Get a list of the user's friends", noParams()), t.userFriends},
	}
	t.byName = make(map[string]tool, len(t.tools))
	for _, tl := range t.tools {
		t.byName[tl.definition.Name] = tl
	}
	return t
}

func fn(name, description string, parameters map[string]any) llms.FunctionDefinition {
	return llms.FunctionDefinition{Name: name, Description: description, Parameters: parameters}
}

func prop(name, typ, description string) map[string]any {
	return map[string]any{name: map[string]any{"type": typ, "description": description}}
}

func params(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func noParams() map[string]any {
	return params(map[string]any{})
}

// Definitions returns the tools in the form the model expects.
func (t *Toolbox) Definitions() []llms.Tool {
	defs := make([]llms.Tool, 0, len(t.tools))
	for _, tl := range t.tools {
		def := tl.definition
		defs = append(defs, llms.Tool{Type: "function", Function: &def})
	}
	return defs
}

// Execute runs one tool call for userID and returns its JSON result.
func (t *Toolbox) Execute(ctx context.Context, userID uint64, call llms.ToolCall) (string, error) {
	if call.FunctionCall == nil {
		return "", fmt.Errorf("tool call %s has no function", call.ID)
	}
	tl, ok := t.byName[call.FunctionCall.Name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.FunctionCall.Name)
	}

	args := json.RawMessage(call.FunctionCall.Arguments)
	if len(strings.TrimSpace(call.FunctionCall.Arguments)) == 0 {
		args = json.RawMessage("{}")
	}

	result, err := tl.run(ctx, userID, args)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decode(name string, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", name, err)
	}
	return nil
}

func notFound(message string) map[string]any {
	return map[string]any{"found": false, "message": message}
}

func clampDays(days int) int {
	if days <= 0 {
		return defaultDays
	}
	return min(days, maxDays)
}

func (t *Toolbox) userBooks(ctx context.Context, userID uint64, _ json.RawMessage) (any, error) {
	books, err := t.library.Books(ctx, userID, "", 0)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return notFound("No books in your library yet."), nil
	}
	return map[string]any{"found": true, "count": len(books), "books": books}, nil
}

func (t *Toolbox) bookProgress(ctx context.Context, userID uint64, raw json.RawMessage) (any, error) {
	var args struct {
		BookTitle string `json:"bookTitle"`
	}
	if err := decode("getBookProgress", raw, &args); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(args.BookTitle)
	if title == "" {
		return notFound("A book title is required."), nil
	}

	books, err := t.library.Books(ctx, userID, title, bookMatchLimit)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return notFound(fmt.Sprintf("Could not find a book matching %q in your library.", title)), nil
	}
	return map[string]any{"found": true, "search_query": title, "match_count": len(books), "books": books}, nil
}

func (t *Toolbox) lastReadBook(ctx context.Context, userID uint64, _ json.RawMessage) (any, error) {
	book, err := t.library.LastRead(ctx, userID)
	if goErrors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("No reading history found."), nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"found":        true,
		"title":        book.Title,
		"current_page": book.CurrentPage,
		"total_pages":  book.TotalPages,
		"last_read_at": book.LastReadAt,
	}, nil
}

func (t *Toolbox) readingActivity(ctx context.Context, userID uint64, raw json.RawMessage) (any, error) {
	var args struct {
		Days int `json:"days"`
	}
	if err := decode("getReadingActivity", raw, &args); err != nil {
		return nil, err
	}
	days := clampDays(args.Days)

	summary, err := t.activity.Summary(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	if !summary.HasActivity {
		return map[string]any{"has_activity": false, "message": fmt.Sprintf("No reading activity in the last %d days.", days)}, nil
	}
	return summary, nil
}

func (t *Toolbox) dailyReadingStats(ctx context.Context, userID uint64, raw json.RawMessage) (any, error) {
	var args struct {
		Days int `json:"days"`
	}
	if err := decode("getDailyReadingStats", raw, &args); err != nil {
		return nil, err
	}

	daily, err := t.activity.DailyPages(ctx, userID, clampDays(args.Days))
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": daily}, nil
}

func (t *Toolbox) friendNotes(ctx context.Context, userID uint64, raw json.RawMessage) (any, error) {
	var args struct {
		Limit int `json:"limit"`
	}
	if err := decode("getFriendNotes", raw, &args); err != nil {
		return nil, err
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultNoteLimit
	}
	limit = min(limit, maxNoteLimit)

	notes, err := t.library.NotesFromOthers(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return notFound("No friend notes found in your files."), nil
	}
	return map[string]any{"found": true, "notes": notes}, nil
}

func (t *Toolbox) friendProgress(ctx context.Context, userID uint64, raw json.RawMessage) (any, error) {
	var args struct {
		FriendUsername string `json:"friendUsername"`
		BookTitle      string `json:"bookTitle"`
	}
	if err := decode("getFriendProgress", raw, &args); err != nil {
		return nil, err
	}
	username := strings.TrimPrefix(strings.TrimSpace(args.FriendUsername), "@")

	friend, err := t.library.FindUserByUsername(ctx, username)
	if goErrors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(fmt.Sprintf("Could not find user @%s", username)), nil
	}
	if err != nil {
		return nil, err
	}

	progress, err := t.library.SharedProgress(ctx, userID, friend.ID, strings.TrimSpace(args.BookTitle))
	if err != nil {
		return nil, err
	}
	if len(progress) == 0 {
		return notFound(fmt.Sprintf("@%s hasn't started reading your shared books yet.", friend.Username)), nil
	}
	return map[string]any{"found": true, "friend": displayName(friend), "progress": progress}, nil
}

func (t *Toolbox) friendsReadingBook(ctx context.Context, userID uint64, raw json.RawMessage) (any, error) {
	var args struct {
		BookTitle string `json:"bookTitle"`
	}
	if err := decode("getFriendsReadingBook", raw, &args); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(args.BookTitle)

	books, err := t.library.Books(ctx, userID, title, 1)
	if err != nil {
		return nil, err
	}
	if title == "" || len(books) == 0 {
		return notFound(fmt.Sprintf("Could not find a book matching %q.", title)), nil
	}

	readers, err := t.library.Readers(ctx, books[0].DocumentID, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"found":        true,
		"book_title":   books[0].Title,
		"friend_count": len(readers),
		"friends":      readers,
	}, nil
}

func (t *Toolbox) userFriends(ctx context.Context, userID uint64, _ json.RawMessage) (any, error) {
	friends, err := t.friends.Friends(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(friends) == 0 {
		return notFound("You don't have any friends added yet."), nil
	}

	list := make([]map[string]string, 0, len(friends))
	for _, f := range friends {
		list = append(list, map[string]string{
			"username":     f.Username,
			"display_name": profileName(f),
		})
	}
	return map[string]any{"found": true, "count": len(list), "friends": list}, nil
}

func displayName(u *domain.User) string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.Username
}

func profileName(p domain.Profile) string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	return p.Username
}
