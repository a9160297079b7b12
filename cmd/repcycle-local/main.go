// Command repcycle-local runs RepCycle in guest mode: one profile kept in a
// local SQLite file, driven from the command line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/meltforce/repcycle/internal/account"
	"github.com/meltforce/repcycle/internal/config"
	"github.com/meltforce/repcycle/internal/cycle"
	"github.com/meltforce/repcycle/internal/models"
	"github.com/meltforce/repcycle/internal/storage"
	"github.com/meltforce/repcycle/internal/training"
	"github.com/meltforce/repcycle/internal/transfer"
)

const usage = `Usage: repcycle-local [flags] <command> [args]

Commands:
  list                          list exercises
  add NAME MAX1RM GROUP         add an exercise
  update ID [-name N] [-max M]  change name and/or 1RM
  delete ID                     delete an exercise
  state                         current cycle and trained groups
  done GROUP | retrain GROUP    mark a muscle group
  finish [-yes]                 advance to the next cycle
  plan                          target weights for the current cycle
  weight ID [CYCLE]             target weight of one exercise
  export [FILE]                 write the profile as JSON (stdout by default)
  import FILE                   replace the profile from a JSON export
  default-plan [-yes]           load the starter plan
  login USERNAME                sign in to the account service (password on stdin)
  whoami | logout

Flags:
`

// guestUser is the single profile of the local database.
const guestUser = 1

type cli struct {
	svc     *training.Service
	session *account.Session
	in      *bufio.Reader
	out     io.Writer
}

// options are the global flags.
type options struct {
	dbPath     *string
	policy     *string
	accountURL *string
	configPath *string
	verbose    *bool
}

func newFlagSet() (*flag.FlagSet, *options) {
	fs := flag.NewFlagSet("repcycle-local", flag.ExitOnError)
	o := &options{
		dbPath:     fs.String("db", "data/repcycle.db", "path to the local SQLite database"),
		policy:     fs.String("policy", "arm_exempt", "completion policy: arm_exempt or strict"),
		accountURL: fs.String("account", os.Getenv("REPCYCLE_ACCOUNT_BASE_URL"), "account service base URL"),
		configPath: fs.String("config", "", "optional config file; supplies sqlite_path, account and training settings for flags not given"),
		verbose:    fs.Bool("v", false, "log mutations to stderr"),
	}
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	return fs, o
}

// applyConfig fills the flags the user did not set from cfg and returns the
// account profile path.
func applyConfig(fs *flag.FlagSet, cfg *config.Config) (string, error) {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	fromConfig := map[string]string{
		"db":      cfg.Storage.SQLitePath,
		"account": cfg.Account.BaseURL,
		"policy":  cfg.Training.CompletionPolicy,
	}
	for name, value := range fromConfig {
		if set[name] || value == "" {
			continue
		}
		if err := fs.Set(name, value); err != nil {
			return "", fmt.Errorf("applying config %s: %w", name, err)
		}
	}
	return cfg.Account.ProfilePath, nil
}

func main() {
	fs, o := newFlagSet()
	_ = fs.Parse(os.Args[1:])

	level := slog.LevelWarn
	if *o.verbose {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	profilePath := ""
	if *o.configPath != "" {
		cfg, err := config.LoadLocal(*o.configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		if profilePath, err = applyConfig(fs, cfg); err != nil {
			log.Error("invalid config", "error", err)
			os.Exit(1)
		}
	}

	p, err := cycle.ParsePolicy(*o.policy)
	if err != nil {
		log.Error("invalid policy", "error", err)
		os.Exit(2)
	}

	db, err := storage.OpenLocal(*o.dbPath)
	if err != nil {
		log.Error("failed to open local database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := db.Profile(guestUser)
	c := &cli{
		svc: training.New(store, training.Settings{Catalog: models.DefaultCatalog(), Policy: p}, log),
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}
	if *o.accountURL != "" {
		c.session = account.NewSession(account.NewClient(*o.accountURL, profilePath), store)
	}

	if err := c.run(context.Background(), fs.Arg(0), fs.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		db.Close()
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		return c.list(ctx)
	case "add":
		return c.add(ctx, args)
	case "update":
		return c.update(ctx, args)
	case "delete":
		if len(args) != 1 {
			return errors.New("usage: delete ID")
		}
		return c.svc.DeleteExercise(ctx, args[0])
	case "state":
		st, err := c.svc.Status(ctx)
		if err != nil {
			return err
		}
		return c.printJSON(st)
	case "done", "retrain":
		return c.mark(ctx, cmd, args)
	case "finish":
		return c.finish(ctx, args)
	case "plan":
		return c.plan(ctx)
	case "weight":
		return c.weight(ctx, args)
	case "export":
		return c.export(ctx, args)
	case "import":
		return c.importFile(ctx, args)
	case "default-plan":
		return c.defaultPlan(ctx, args)
	case "login", "whoami", "logout":
		return c.account(ctx, cmd, args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (c *cli) list(ctx context.Context) error {
	list, err := c.svc.Exercises.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tGROUP\tMAX1RM")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\n", e.ID, e.Name, e.Group, e.Max1RM)
	}
	return tw.Flush()
}

func (c *cli) add(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: add NAME MAX1RM GROUP")
	}
	max1RM, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("max1RM: %w", err)
	}
	e, err := c.svc.AddExercise(ctx, models.ExerciseDraft{
		Name:   args[0],
		Max1RM: max1RM,
		Group:  models.Group(strings.ToLower(args[2])),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, e.ID)
	return nil
}

func (c *cli) update(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: update ID [-name N] [-max M]")
	}
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	name := fs.String("name", "", "new name")
	max1RM := fs.Float64("max", 0, "new one-rep max")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var patch models.ExercisePatch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			patch.Name = name
		case "max":
			patch.Max1RM = max1RM
		}
	})
	if patch.Name == nil && patch.Max1RM == nil {
		return errors.New("nothing to update: pass -name and/or -max")
	}
	return c.svc.UpdateExercise(ctx, args[0], patch)
}

func (c *cli) mark(ctx context.Context, cmd string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s GROUP", cmd)
	}
	group := models.Group(strings.ToLower(args[0]))
	var groups []models.Group
	var err error
	if cmd == "done" {
		groups, err = c.svc.MarkGroupDone(ctx, group)
	} else {
		groups, err = c.svc.MarkGroupRetrain(ctx, group)
	}
	if err != nil {
		return err
	}
	return c.printJSON(map[string]any{"trainedGroups": groups})
}

func (c *cli) finish(ctx context.Context, args []string) error {
	yes := len(args) > 0 && args[0] == "-yes"
	res, err := c.svc.Finish(ctx, yes)
	var ue *training.UntrainedError
	if errors.As(err, &ue) {
		if !c.confirm(ue.Error() + ". Finish the cycle anyway?") {
			return nil
		}
		res, err = c.svc.Finish(ctx, true)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s → %s\n", res.Previous, res.Next)
	return nil
}

func (c *cli) plan(ctx context.Context) error {
	plan, err := c.svc.Plan(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "cycle %s: %d%% 1RM, %d-%d reps, %d sets\n\n",
		plan.Cycle, plan.Params.RM, plan.Params.Reps.Min, plan.Params.Reps.Max, plan.Params.Sets)

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tDONE\tEXERCISE\tWEIGHT")
	for _, g := range plan.Groups {
		done := ""
		if g.Trained {
			done = "x"
		}
		if len(g.Prescriptions) == 0 {
			fmt.Fprintf(tw, "%s\t%s\t-\t\n", g.Group, done)
			continue
		}
		for _, p := range g.Prescriptions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", g.Group, done, p.Exercise.Name, p.TargetWeight)
		}
	}
	return tw.Flush()
}

func (c *cli) weight(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: weight ID [CYCLE]")
	}
	var cy models.Cycle
	if len(args) == 2 {
		cy = models.Cycle(strings.ToLower(args[1]))
	}
	w, used, err := c.svc.TargetWeight(ctx, args[0], cy)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d (%s)\n", w, used)
	return nil
}

func (c *cli) export(ctx context.Context, args []string) error {
	snap, err := c.svc.Transfer.Export(ctx)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return transfer.Encode(c.out, snap)
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := transfer.Encode(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c *cli) importFile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: import FILE")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	snap, err := transfer.Decode(f, c.svc.Tracker.Catalog())
	if err != nil {
		return err
	}
	if err := c.svc.Import(ctx, snap); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "imported %d exercises, cycle %s\n", len(snap.Exercises), snap.CurrentCycle)
	return nil
}

func (c *cli) defaultPlan(ctx context.Context, args []string) error {
	yes := len(args) > 0 && args[0] == "-yes"
	snap, err := c.svc.LoadDefaultPlan(ctx, yes)
	if errors.Is(err, training.ErrConfirmOverwrite) {
		if !c.confirm("This replaces your exercises and training progress. Continue?") {
			return nil
		}
		snap, err = c.svc.LoadDefaultPlan(ctx, true)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "loaded %d exercises\n", len(snap.Exercises))
	return nil
}

func (c *cli) account(ctx context.Context, cmd string, args []string) error {
	if c.session == nil {
		return errors.New("no account service configured (-account or REPCYCLE_ACCOUNT_BASE_URL)")
	}
	switch cmd {
	case "login":
		if len(args) != 1 {
			return errors.New("usage: login USERNAME")
		}
		fmt.Fprint(c.out, "password: ")
		password, err := c.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if err := c.session.Login(ctx, args[0], strings.TrimRight(password, "\r\n")); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "logged in")
		return nil
	case "whoami":
		p, err := c.session.Profile(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, string(p.Raw))
		return nil
	default:
		return c.session.Logout(ctx)
	}
}

func (c *cli) confirm(question string) bool {
	fmt.Fprintf(c.out, "%s [y/N] ", question)
	answer, _ := c.in.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
