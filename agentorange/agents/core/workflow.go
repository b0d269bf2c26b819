package core

import (
	"agentorange/agentorange/agents/configs"
	"agentorange/agentorange/services/history"
	"agentorange/agentorange/services/llm"
	"agentorange/agentorange/sources/psql/models"
	"agentorange/agentorange/utils/jsonutils"
	"agentorange/agentorange/utils/logging"
	"agentorange/agentorange/utils/metrics"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence boundary the engine and the HTTP surface use.
type Store interface {
	AddMessage(ctx context.Context, msg *models.ChatMessage) error
	DeleteMessages(ctx context.Context, ids []string) error
	FetchMessages(ctx context.Context, groupID string) ([]models.ChatMessage, error)
	DeleteGroup(ctx context.Context, groupID string) error

	AddCodeSnippet(ctx context.Context, title, code, subTitle, groupID string) (*models.CodeSnippet, error)
	FetchCodeSnippets(ctx context.Context, groupID string) ([]models.CodeSnippet, error)

	AddCommand(ctx context.Context, cmd *models.ChatCommand) error
	DeleteCommand(ctx context.Context, name string) error
	FetchCommand(ctx context.Context, name string) (*models.ChatCommand, error)
	FetchAllCommands(ctx context.Context) ([]models.ChatCommand, error)

	AddWorkflow(ctx context.Context, w *models.Workflow) error
	DeleteWorkflow(ctx context.Context, name string) error
	FetchWorkflow(ctx context.Context, name string) (*models.Workflow, error)
	FetchAllWorkflows(ctx context.Context) ([]models.Workflow, error)

	SeedCommands(ctx context.Context, cmds []models.ChatCommand) (bool, error)
}

type CredentialStore interface {
	Get(key string) (string, bool)
}

// Archive keeps a copy of generated code outside the database.
type Archive interface {
	ArchiveSnippet(ctx context.Context, snippet models.CodeSnippet) error
}

type ProviderFactory func(kind llm.HostKind, apiKey string, cfg llm.ClientConfig) llm.Provider

// RunContext is the conversation state a command or chat turn runs against.
// A nil Messages slice is loaded from the store when OptionMessages is set.
type RunContext struct {
	GroupID      string
	FileContent  string
	SelectedRows map[int]struct{}
	Options      history.Options
	Messages     []models.ChatMessage
	// LaneID lets the caller know the lane before the run starts. Generated when empty.
	LaneID string
}

type CommandResult struct {
	LaneID      string
	UserMessage models.ChatMessage
	Reply       models.ChatMessage
	Snippet     *models.CodeSnippet
	Cancelled   bool
}

type ChatRequest struct {
	RunContext
	Text        string
	Host        string
	Model       string
	Temperature *float64
	Role        string
}

type Engine struct {
	store        Store
	creds        CredentialStore
	defaults     configs.Defaults
	newProvider  ProviderFactory
	clientConfig llm.ClientConfig
	publisher    Publisher
	archive      Archive
	metrics      *metrics.Metrics
	lanes        *Lanes
	coordinator  *StreamCoordinator

	mu        sync.Mutex
	workflows map[string]context.CancelFunc
}

type Option func(*Engine)

func WithProviderFactory(f ProviderFactory) Option {
	return func(e *Engine) { e.newProvider = f }
}

func WithClientConfig(cfg llm.ClientConfig) Option {
	return func(e *Engine) { e.clientConfig = cfg }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithArchive(a Archive) Option {
	return func(e *Engine) { e.archive = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(store Store, creds CredentialStore, defaults configs.Defaults, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		creds:       creds,
		defaults:    defaults,
		newProvider: llm.NewProvider,
		clientConfig: llm.ClientConfig{
			MaxTokens:       defaults.MaxTokens,
			ClaudeMaxTokens: defaults.ClaudeMaxTokens,
		},
		publisher: nopPublisher{},
		workflows: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.lanes = NewLanes(e.metrics)
	e.coordinator = NewStreamCoordinator(store, e.lanes, e.publisher, e.metrics)
	return e
}

func (e *Engine) Lanes() *Lanes {
	return e.lanes
}

// Reserve registers a new generating lane ahead of an asynchronous run. Pass
// the id as RunContext.LaneID; cancelling it first makes the run a no-op.
func (e *Engine) Reserve() string {
	id := uuid.NewString()
	e.lanes.Reserve(id)
	return id
}

func (e *Engine) Defaults() configs.Defaults {
	return e.defaults
}

// turn is one request on a lane: a command run or a chat message.
type turn struct {
	tag         *string
	userContent string
	prompt      string
	role        string
	host        string
	model       string
	temperature float64
	options     history.Options
	coder       bool
	subTitle    string
}

// RunCommand executes cmd on a fresh lane and adapter. The synthetic user turn
// and the assistant placeholder are persisted before the request is sent and
// stay persisted when it fails.
func (e *Engine) RunCommand(ctx context.Context, cmd models.ChatCommand, rc RunContext) (CommandResult, error) {
	defer logging.LogDuration(ctx, "run_command")()

	resolved := e.defaults.Resolve(cmd)
	name := cmd.Name
	return e.run(ctx, rc, turn{
		tag:         &name,
		userContent: fmt.Sprintf("Run command %q\n\n%s", cmd.Name, cmd.Prompt),
		prompt:      cmd.Prompt,
		role:        resolved.Role,
		host:        resolved.Host,
		model:       resolved.Model,
		temperature: resolved.Temperature,
		// a command always carries its own system role
		options:  rc.Options | history.OptionRole,
		coder:    cmd.Type == models.AgentTypeCoder,
		subTitle: cmd.Name,
	})
}

// Chat sends a free-form user message on a fresh lane. Host and model fall back
// to the user defaults.
func (e *Engine) Chat(ctx context.Context, req ChatRequest) (CommandResult, error) {
	defer logging.LogDuration(ctx, "chat")()

	if strings.TrimSpace(req.Text) == "" {
		return CommandResult{}, fmt.Errorf("%w: empty message", llm.ErrInvalidParameters)
	}
	cmd := models.ChatCommand{Host: optional(req.Host), Model: optional(req.Model), Role: optional(req.Role)}
	resolved := e.defaults.Resolve(cmd)
	temperature := e.defaults.CustomTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	return e.run(ctx, req.RunContext, turn{
		userContent: req.Text,
		prompt:      req.Text,
		role:        resolved.Role,
		host:        resolved.Host,
		model:       resolved.Model,
		temperature: temperature,
		options:     req.Options,
	})
}

func (e *Engine) run(ctx context.Context, rc RunContext, t turn) (CommandResult, error) {
	start := time.Now()
	laneID := rc.LaneID
	if laneID == "" {
		laneID = uuid.NewString()
	}
	result := CommandResult{LaneID: laneID}
	kind := llm.ResolveHost(t.host)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !e.lanes.Attach(laneID, cancel) {
		result.Cancelled = true
		logging.AppLogger.Info("lane cancelled before start", zap.String("lane_id", laneID))
		return result, nil
	}
	defer e.lanes.Stop(laneID)

	err := e.execute(runCtx, laneID, rc, t, kind, &result)
	e.metrics.RecordCommand(string(kind), err, time.Since(start))
	if err != nil {
		logging.ErrorLogger.Error("run failed",
			zap.String("lane_id", laneID),
			zap.String("group_id", rc.GroupID),
			zap.String("host", t.host),
			zap.String("model", t.model),
			zap.Error(err))
		return result, err
	}
	logging.AppLogger.Info("run finished",
		zap.String("lane_id", laneID),
		zap.String("group_id", rc.GroupID),
		zap.String("host", t.host),
		zap.Bool("cancelled", result.Cancelled))
	return result, nil
}

func (e *Engine) execute(ctx context.Context, laneID string, rc RunContext, t turn, kind llm.HostKind, result *CommandResult) error {
	prior, err := e.priorMessages(ctx, rc)
	if err != nil {
		return err
	}

	user := models.ChatMessage{
		ID:        uuid.NewString(),
		Timestamp: models.NextTimestamp(),
		Role:      models.RoleUser,
		Type:      models.MessageTypeMessage,
		Content:   t.userContent,
		Tag:       t.tag,
		GroupID:   rc.GroupID,
	}
	if err := e.store.AddMessage(ctx, &user); err != nil {
		return fmt.Errorf("persist user turn: %w", err)
	}
	result.UserMessage = user
	e.publisher.Publish(ctx, user)

	host, model := t.host, t.model
	reply := models.ChatMessage{
		ID:        uuid.NewString(),
		Timestamp: models.NextTimestamp(),
		Role:      models.RoleAssistant,
		Type:      models.MessageTypeMessage,
		Tag:       t.tag,
		Model:     &model,
		Host:      &host,
		GroupID:   rc.GroupID,
	}
	if err := e.store.AddMessage(ctx, &reply); err != nil {
		return fmt.Errorf("persist placeholder: %w", err)
	}
	result.Reply = reply
	e.publisher.Publish(ctx, reply)

	provider, err := e.provider(kind)
	if err != nil {
		return err
	}
	if !e.lanes.Bind(laneID, provider) {
		// cancelled before the request went out
		result.Cancelled = true
		return nil
	}

	provider.SetHistory(history.Assemble(history.Request{
		FileContent:  rc.FileContent,
		SelectedRows: rc.SelectedRows,
		Options:      t.options,
		Messages:     prior,
		Role:         t.role,
	}))
	deltas, errs := provider.SendMessageStream(ctx, t.prompt, llm.SendOptions{
		Host:        t.host,
		Model:       t.model,
		Temperature: t.temperature,
	})

	drained, err := e.coordinator.Drain(ctx, laneID, &reply, deltas, errs)
	result.Reply = reply
	result.Cancelled = drained.Cancelled
	if err != nil {
		return err
	}
	if !t.coder || strings.TrimSpace(drained.Text) == "" {
		return nil
	}

	// a cancelled coder run keeps what it streamed so far
	if drained.Cancelled {
		ctx = context.WithoutCancel(ctx)
	}
	snippet, err := e.store.AddCodeSnippet(ctx, e.defaults.Title(), drained.Text, t.subTitle, rc.GroupID)
	if err != nil {
		return fmt.Errorf("persist code snippet: %w", err)
	}
	result.Snippet = snippet
	reply.CodeID = &snippet.ID
	reply.Type = models.MessageTypeCode
	if err := e.store.AddMessage(ctx, &reply); err != nil {
		return fmt.Errorf("link code snippet: %w", err)
	}
	result.Reply = reply
	e.publisher.Publish(ctx, reply)

	if e.archive != nil {
		if err := e.archive.ArchiveSnippet(ctx, *snippet); err != nil {
			logging.ErrorLogger.Warn("archiving code snippet failed", zap.String("snippet_id", snippet.ID), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) priorMessages(ctx context.Context, rc RunContext) ([]models.ChatMessage, error) {
	if !rc.Options.Has(history.OptionMessages) || rc.Messages != nil || rc.GroupID == "" {
		return rc.Messages, nil
	}
	msgs, err := e.store.FetchMessages(ctx, rc.GroupID)
	if err != nil {
		return nil, fmt.Errorf("load group history: %w", err)
	}
	return msgs, nil
}

// provider builds a fresh adapter for kind. Vendor backends need a stored key.
func (e *Engine) provider(kind llm.HostKind) (llm.Provider, error) {
	if kind == llm.HostCustom {
		return e.newProvider(kind, "", e.clientConfig), nil
	}
	key, ok := e.creds.Get(string(kind))
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return nil, fmt.Errorf("%w: %s", llm.ErrMissingCredential, kind)
	}
	return e.newProvider(kind, key, e.clientConfig), nil
}

type hostGroup struct {
	host     string
	commands []models.ChatCommand
}

// partition keeps the arrangement order, drops names that are not commands
// (including the wait sentinel) and groups by resolved host in order of first
// appearance.
func (e *Engine) partition(w models.Workflow, commands []models.ChatCommand) []hostGroup {
	byName := make(map[string]models.ChatCommand, len(commands))
	for _, c := range commands {
		byName[c.Name] = c
	}

	var groups []hostGroup
	index := map[string]int{}
	for _, name := range jsonutils.Flatten(w.Groups()) {
		if name == models.WaitCommandID {
			continue
		}
		cmd, ok := byName[name]
		if !ok {
			logging.AppLogger.Warn("workflow references unknown command",
				zap.String("workflow", w.Name), zap.String("command", name))
			continue
		}
		key := hostKey(e.defaults.Resolve(cmd).Host)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, hostGroup{host: key})
		}
		groups[i].commands = append(groups[i].commands, cmd)
	}
	return groups
}

func hostKey(host string) string {
	if kind := llm.ResolveHost(host); kind != llm.HostCustom {
		return string(kind)
	}
	return strings.TrimSuffix(strings.TrimSpace(host), "/")
}

// RunWorkflow runs every host group of w concurrently and the commands of a
// group one after another. A failing command ends its own group only. All
// commands share the history snapshot taken when the workflow starts.
func (e *Engine) RunWorkflow(ctx context.Context, w models.Workflow, rc RunContext) error {
	defer logging.LogDuration(ctx, "run_workflow")()

	commands, err := e.store.FetchAllCommands(ctx)
	if err != nil {
		e.metrics.RecordWorkflow(err)
		return fmt.Errorf("load commands: %w", err)
	}
	prior, err := e.priorMessages(ctx, rc)
	if err != nil {
		e.metrics.RecordWorkflow(err)
		return err
	}
	if prior == nil {
		prior = []models.ChatMessage{}
	}
	rc.Messages = prior

	groups := e.partition(w, commands)
	logging.AppLogger.Info("workflow started",
		zap.String("workflow", w.Name),
		zap.String("group_id", rc.GroupID),
		zap.Int("host_groups", len(groups)))

	wfCtx, cancel := context.WithCancel(ctx)
	runID := uuid.NewString()
	e.mu.Lock()
	e.workflows[runID] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.workflows, runID)
		e.mu.Unlock()
		cancel()
	}()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, g := range groups {
		wg.Add(1)
		go func(g hostGroup) {
			defer wg.Done()
			for _, cmd := range g.commands {
				if wfCtx.Err() != nil {
					return
				}
				cmdRC := rc
				cmdRC.LaneID = ""
				if _, err := e.RunCommand(wfCtx, cmd, cmdRC); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("command %q on %s: %w", cmd.Name, g.host, err))
					mu.Unlock()
					return
				}
			}
		}(g)
	}
	wg.Wait()

	err = errors.Join(errs...)
	e.metrics.RecordWorkflow(err)
	return err
}

// Cancel stops one lane. It is safe to call more than once or on a lane that
// already finished; it reports whether a generating lane was stopped.
func (e *Engine) Cancel(laneID string) bool {
	if !e.lanes.Cancel(laneID) {
		return false
	}
	e.metrics.RecordCancel()
	logging.AppLogger.Info("lane cancelled", zap.String("lane_id", laneID))
	return true
}

// CancelAll stops every running workflow and every generating lane. It
// returns the number of lanes that were generating.
func (e *Engine) CancelAll() int {
	ids := e.lanes.Active()

	e.mu.Lock()
	for _, cancel := range e.workflows {
		cancel()
	}
	e.mu.Unlock()

	for _, id := range ids {
		e.Cancel(id)
	}
	return len(ids)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
