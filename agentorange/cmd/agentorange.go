// Command-line interface for running chat turns, commands and workflows against the local database
package main

import (
	"agentorange/agentorange/agents/configs"
	"agentorange/agentorange/agents/core"
	"agentorange/agentorange/config"
	"agentorange/agentorange/services/history"
	"agentorange/agentorange/sources/credentials"
	"agentorange/agentorange/sources/psql"
	"agentorange/agentorange/sources/psql/dao"
	"agentorange/agentorange/sources/psql/models"
	"agentorange/agentorange/utils/color"
	"agentorange/agentorange/utils/jsonutils"
	"agentorange/agentorange/utils/logging"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// terminal prints assistant replies as they stream in.
type terminal struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[string]int
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out, printed: map[string]int{}}
}

func (t *terminal) Publish(_ context.Context, msg models.ChatMessage) {
	if !msg.IsAssistant() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.printed[msg.ID]
	if len(msg.Content) <= n {
		return
	}
	fmt.Fprint(t.out, color.Reply(msg.Content[n:]))
	t.printed[msg.ID] = len(msg.Content)
}

func main() {
	logging.InitLogger()
	defer logging.Sync()
	cfg := config.LoadConfig()
	color.ConfigureFromEnv()

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := psql.NewDatabase(openCtx, cfg)
	cancel()
	if err != nil {
		logging.ErrorLogger.Error("database connection error", zap.Error(err))
		fmt.Println(color.Failure("database connection error: " + err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	gateway := dao.NewGateway(db.DB)
	if builtins, err := configs.BuiltinCommands(); err == nil {
		if _, err := gateway.SeedCommands(ctx, builtins); err != nil {
			logging.ErrorLogger.Warn("seeding commands failed", zap.Error(err))
		}
	}
	term := newTerminal(os.Stdout)
	engine := core.NewEngine(gateway, credentials.FromConfig(cfg), configs.LoadDefaults(cfg.DefaultsPath), core.WithPublisher(term))

	// an interrupt stops every generating lane
	go func() {
		<-ctx.Done()
		engine.CancelAll()
	}()

	var runErr error
	switch args[0] {
	case "commands":
		runErr = listCommands(ctx, gateway)
	case "run":
		if len(args) < 2 {
			usage()
			os.Exit(1)
		}
		runErr = runCommand(ctx, engine, gateway, args[1], args[2:])
	case "workflow":
		if len(args) < 2 {
			usage()
			os.Exit(1)
		}
		runErr = runWorkflow(ctx, engine, gateway, args[1], args[2:])
	case "code":
		if len(args) < 2 {
			usage()
			os.Exit(1)
		}
		runErr = listCode(ctx, gateway, args[1])
	case "chat":
		runErr = chat(ctx, engine, args[1:])
	default:
		usage()
		os.Exit(1)
	}
	if runErr != nil {
		fmt.Println(color.Failure(runErr.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("AgentOrange CLI usage:")
	fmt.Println("  agentorange commands                       # List saved commands")
	fmt.Println("  agentorange run <command> [file] [group]   # Run a command against a file")
	fmt.Println("  agentorange workflow <name> [file] [group] # Run a workflow against a file")
	fmt.Println("  agentorange code <group>                   # Show the code generated in a group")
	fmt.Println("  agentorange chat [group]                   # Chat in a conversation group")
}

func listCommands(ctx context.Context, gateway *dao.Gateway) error {
	cmds, err := gateway.FetchAllCommands(ctx)
	if err != nil {
		return err
	}
	for _, c := range cmds {
		fmt.Printf("%s  %s\n", color.Prompt(c.Name), c.ShortDescription)
	}
	return nil
}

func listCode(ctx context.Context, gateway *dao.Gateway, groupID string) error {
	snippets, err := gateway.FetchCodeSnippets(ctx, groupID)
	if err != nil {
		return err
	}
	if len(snippets) == 0 {
		fmt.Println(color.Warning("no code in group " + groupID))
		return nil
	}
	for _, s := range snippets {
		fmt.Println(formatSnippet(s))
	}
	return nil
}

// formatSnippet shows the fenced code of a stored reply under its title.
func formatSnippet(s models.CodeSnippet) string {
	header := s.Title
	if s.SubTitle != "" {
		header += " / " + s.SubTitle
	}
	return color.Prompt(header) + "\n" + jsonutils.ExtractCodeBlocks(s.Code) + "\n"
}

// fileContext reads the optional file and group arguments.
func fileContext(args []string) (core.RunContext, error) {
	rc := core.RunContext{Options: history.OptionCode | history.OptionMessages}
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return rc, err
		}
		rc.FileContent = string(data)
	}
	rc.GroupID = uuid.NewString()
	if len(args) > 1 {
		rc.GroupID = args[1]
	}
	return rc, nil
}

func runCommand(ctx context.Context, engine *core.Engine, gateway *dao.Gateway, name string, args []string) error {
	cmd, err := gateway.FetchCommand(ctx, name)
	if err != nil {
		return err
	}
	if cmd == nil {
		return fmt.Errorf("unknown command %q", name)
	}
	rc, err := fileContext(args)
	if err != nil {
		return err
	}
	fmt.Println(color.Info("group: " + rc.GroupID))
	res, err := engine.RunCommand(ctx, *cmd, rc)
	fmt.Println()
	if err != nil {
		return err
	}
	report(res)
	return nil
}

func runWorkflow(ctx context.Context, engine *core.Engine, gateway *dao.Gateway, name string, args []string) error {
	w, err := gateway.FetchWorkflow(ctx, name)
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("unknown workflow %q", name)
	}
	rc, err := fileContext(args)
	if err != nil {
		return err
	}
	fmt.Println(color.Info("group: " + rc.GroupID))
	if err := engine.RunWorkflow(ctx, *w, rc); err != nil {
		fmt.Println()
		return err
	}
	fmt.Println()
	fmt.Println(color.Success("workflow finished"))
	return nil
}

func chat(ctx context.Context, engine *core.Engine, args []string) error {
	groupID := uuid.NewString()
	if len(args) > 0 {
		groupID = args[0]
	}
	fmt.Println(color.Info("group: " + groupID))
	fmt.Println("Type your message or 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for ctx.Err() == nil {
		fmt.Print(color.Prompt("agentorange> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			break
		}
		if line == "" {
			continue
		}
		res, err := engine.Chat(ctx, core.ChatRequest{
			RunContext: core.RunContext{GroupID: groupID, Options: history.OptionMessages},
			Text:       line,
		})
		fmt.Println()
		if err != nil {
			fmt.Println(color.Failure(err.Error()))
			continue
		}
		if res.Cancelled {
			fmt.Println(color.Warning("cancelled"))
		}
	}
	return nil
}

func report(res core.CommandResult) {
	switch {
	case res.Cancelled:
		fmt.Println(color.Warning("cancelled"))
	case res.Snippet != nil:
		fmt.Println(color.Success("saved snippet " + res.Snippet.ID))
	default:
		fmt.Println(color.Success("done"))
	}
}
