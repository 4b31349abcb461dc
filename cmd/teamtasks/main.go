package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/nhle/teamtasks/internal/app"
	"github.com/nhle/teamtasks/internal/apperr"
	"github.com/nhle/teamtasks/internal/identity"
	"github.com/nhle/teamtasks/internal/model"
)

var (
	configPath string
	actAs      string
)

const usage = `Usage: teamtasks [--config PATH] [--as ID:EMAIL] <command> [args]

Commands:
  init -id ID -email EMAIL        write a config file for the signed-in user
  invite EMAIL                    invite someone to your team
  respond accept|reject ID        answer an invitation sent to you
  team                            list your teammates
  pending                         list open invitations
  task new|update|done|delete|list
  project new|rename|delete|list
  notifications [-unread]         print your notification feed
  read ID                         mark one notification read
  read-all                        mark every notification read
  feed                            open the interactive notification feed
  credential set-smtp|delete-smtp manage the SMTP password in the keyring
`

func main() {
	flag.StringVar(&configPath, "config", model.DefaultConfigPath(), "Path to config file")
	flag.StringVar(&actAs, "as", "", "Act as another user, formatted id:email")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configPath, actAs, flag.Args(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", apperr.UserMessage(err))
		os.Exit(1)
	}
}

// cli carries the wired application and the acting user for one command.
type cli struct {
	app  *app.App
	user model.Identity
	in   io.Reader
	out  io.Writer
}

// run executes one command. Commands that only touch local files run
// without opening the store.
func run(ctx context.Context, cfgPath, as string, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return apperr.Validation("cli", "no command given")
	}
	command, rest := args[0], args[1:]

	switch command {
	case "init":
		return runInit(cfgPath, rest, out)
	case "credential":
		return runCredential(rest, in, out)
	}

	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return apperr.Validation("cli", "%v", err)
	}
	log, err := app.NewLogger(cfg.Log)
	if err != nil {
		return apperr.Validation("cli", "%v", err)
	}
	defer func() { _ = log.Sync() }()

	user, err := currentUser(ctx, cfg, as)
	if err != nil {
		return apperr.Validation("cli", "%v", err)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("starting failed", zap.Error(err))
		return apperr.Dependency("cli", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("closing failed", zap.Error(err))
		}
	}()

	c := &cli{app: a, user: user, in: in, out: out}

	switch command {
	case "invite":
		err = c.runInvite(ctx, rest)
	case "respond":
		err = c.runRespond(ctx, rest)
	case "team":
		err = c.runTeam(ctx)
	case "pending":
		err = c.runPending(ctx)
	case "task":
		err = c.runTask(ctx, rest)
	case "project":
		err = c.runProject(ctx, rest)
	case "notifications":
		err = c.runNotifications(ctx, rest)
	case "read":
		err = c.runRead(ctx, rest)
	case "read-all":
		err = c.runReadAll(ctx)
	case "feed":
		err = c.runFeed(ctx)
	default:
		return apperr.Validation("cli", "unknown command %q", command)
	}

	if err != nil && errors.Is(err, apperr.ErrDependency) {
		log.Error("command failed", zap.String("command", command), zap.Error(err))
	}
	return err
}

// currentUser resolves --as when given, otherwise the configured user.
func currentUser(ctx context.Context, cfg *model.AppConfig, as string) (model.Identity, error) {
	var p identity.Provider = identity.ConfigProvider{User: cfg.User}
	if as != "" {
		id, email, ok := strings.Cut(as, ":")
		if !ok {
			return model.Identity{}, fmt.Errorf("--as must be formatted id:email")
		}
		p = identity.ConfigProvider{User: model.UserConfig{ID: id, Email: email}}
	}
	return p.CurrentUser(ctx)
}
