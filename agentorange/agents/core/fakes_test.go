package core

import (
	"agentorange/agentorange/agents/configs"
	"agentorange/agentorange/services/llm"
	"agentorange/agentorange/sources/psql/models"
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) index(e string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, got := range l.events {
		if got == e {
			return i
		}
	}
	return -1
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// memStore is an in-memory Store.
type memStore struct {
	mu        sync.Mutex
	events    *eventLog
	messages  map[string]models.ChatMessage
	contents  map[string][]string
	snippets  []models.CodeSnippet
	commands  map[string]models.ChatCommand
	workflows map[string]models.Workflow
	seeded    bool
	failAdd   error
}

func newMemStore(events *eventLog) *memStore {
	return &memStore{
		events:    events,
		messages:  map[string]models.ChatMessage{},
		contents:  map[string][]string{},
		commands:  map[string]models.ChatCommand{},
		workflows: map[string]models.Workflow{},
	}
}

func (s *memStore) AddMessage(_ context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAdd != nil {
		return s.failAdd
	}
	s.messages[msg.ID] = *msg
	s.contents[msg.ID] = append(s.contents[msg.ID], msg.Content)
	return nil
}

func (s *memStore) DeleteMessages(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.messages, id)
	}
	return nil
}

func (s *memStore) FetchMessages(_ context.Context, groupID string) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range s.messages {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *memStore) DeleteGroup(_ context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.messages {
		if m.GroupID == groupID {
			delete(s.messages, id)
		}
	}
	return nil
}

func (s *memStore) AddCodeSnippet(_ context.Context, title, code, subTitle, groupID string) (*models.CodeSnippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snippet := models.CodeSnippet{
		ID:        uuid.NewString(),
		Timestamp: models.NextTimestamp(),
		Title:     title,
		Code:      code,
		SubTitle:  subTitle,
		GroupID:   groupID,
	}
	s.snippets = append(s.snippets, snippet)
	if s.events != nil {
		s.events.add("snippet:" + subTitle)
	}
	return &snippet, nil
}

func (s *memStore) FetchCodeSnippets(_ context.Context, groupID string) ([]models.CodeSnippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CodeSnippet
	for _, sn := range s.snippets {
		if sn.GroupID == groupID {
			out = append(out, sn)
		}
	}
	return out, nil
}

func (s *memStore) AddCommand(_ context.Context, cmd *models.ChatCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[cmd.Name] = *cmd
	return nil
}

func (s *memStore) DeleteCommand(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.commands, name)
	return nil
}

func (s *memStore) FetchCommand(_ context.Context, name string) (*models.ChatCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commands[name]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *memStore) FetchAllCommands(_ context.Context) ([]models.ChatCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatCommand
	for _, c := range s.commands {
		out = append(out, c)
	}
	return out, nil
}

func (s *memStore) AddWorkflow(_ context.Context, w *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[w.Name] = *w
	return nil
}

func (s *memStore) DeleteWorkflow(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workflows, name)
	return nil
}

func (s *memStore) FetchWorkflow(_ context.Context, name string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[name]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *memStore) FetchAllWorkflows(_ context.Context) ([]models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Workflow
	for _, w := range s.workflows {
		out = append(out, w)
	}
	return out, nil
}

func (s *memStore) SeedCommands(_ context.Context, cmds []models.ChatCommand) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seeded {
		return false, nil
	}
	for _, c := range cmds {
		s.commands[c.Name] = c
	}
	s.seeded = true
	return true, nil
}

func (s *memStore) message(id string) models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id]
}

func (s *memStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// fakeProvider streams a canned reply. before runs ahead of the first delta and
// after runs once all deltas were delivered, both on the stream goroutine.
type fakeProvider struct {
	*llm.History
	kind   llm.HostKind
	apiKey string

	reply  func(prompt string) ([]string, error)
	before func(ctx context.Context, prompt string)
	after  func(ctx context.Context, prompt string)

	mu          sync.Mutex
	sentHistory []llm.Message
	sentPrompt  string
	sentOpts    llm.SendOptions
	cancels     atomic.Int32
}

func (p *fakeProvider) SendMessageStream(ctx context.Context, text string, opts llm.SendOptions) (<-chan string, <-chan error) {
	p.mu.Lock()
	p.sentHistory = p.GetHistory()
	p.sentPrompt = text
	p.sentOpts = opts
	p.mu.Unlock()

	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)
		if p.before != nil {
			p.before(ctx, text)
		}
		deltas, err := p.reply(text)
		for _, d := range deltas {
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
		if p.after != nil {
			p.after(ctx, text)
		}
		if err != nil {
			errs <- err
		}
	}()
	return out, errs
}

func (p *fakeProvider) CancelStream() {
	p.cancels.Add(1)
}

type harness struct {
	t      *testing.T
	engine *Engine
	store  *memStore
	events *eventLog
	creds  mapCreds

	reply  func(prompt string) ([]string, error)
	before func(ctx context.Context, prompt string)
	after  func(ctx context.Context, prompt string)

	mu        sync.Mutex
	providers []*fakeProvider
	published []models.ChatMessage
}

type mapCreds map[string]string

func (c mapCreds) Get(key string) (string, bool) {
	v, ok := c[key]
	return v, ok
}

func (h *harness) Publish(_ context.Context, msg models.ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.published = append(h.published, msg)
}

// waitPublished blocks until an update carrying content was published.
func (h *harness) waitPublished(t *testing.T, content string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		for _, m := range h.published {
			if m.Content == content {
				h.mu.Unlock()
				return
			}
		}
		h.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for update %q", content)
}

func (h *harness) lastProvider() *fakeProvider {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.providers) == 0 {
		h.t.Fatal("no provider was created")
	}
	return h.providers[len(h.providers)-1]
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		events: &eventLog{},
		creds:  mapCreds{"openai": " sk-openai ", "claude": "sk-claude"},
		reply: func(prompt string) ([]string, error) {
			return []string{"out-", prompt}, nil
		},
	}
	h.store = newMemStore(h.events)
	factory := func(kind llm.HostKind, apiKey string, cfg llm.ClientConfig) llm.Provider {
		p := &fakeProvider{
			History: llm.NewHistory(cfg.MaxTokens),
			kind:    kind,
			apiKey:  apiKey,
			reply:   func(prompt string) ([]string, error) { return h.reply(prompt) },
			before: func(ctx context.Context, prompt string) {
				h.events.add("start:" + prompt)
				if h.before != nil {
					h.before(ctx, prompt)
				}
			},
			after: func(ctx context.Context, prompt string) {
				if h.after != nil {
					h.after(ctx, prompt)
				}
			},
		}
		h.mu.Lock()
		h.providers = append(h.providers, p)
		h.mu.Unlock()
		return p
	}
	defaults := configs.Defaults{CustomHost: "http://default:1234", CustomModel: "default-model", CodeTitle: "Snippet"}
	h.engine = NewEngine(h.store, h.creds, defaults, WithProviderFactory(factory), WithPublisher(h))
	return h
}

func strPtr(s string) *string { return &s }

func command(name, prompt, host string, typ models.AgentType) models.ChatCommand {
	return models.ChatCommand{
		Name:        name,
		Timestamp:   models.NextTimestamp(),
		Prompt:      prompt,
		Role:        strPtr("role-" + name),
		Host:        strPtr(host),
		Model:       strPtr("model-" + name),
		Temperature: 0.3,
		Type:        typ,
	}
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

var errBoom = errors.New("boom")
