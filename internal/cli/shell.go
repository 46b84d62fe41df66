package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/firstbutton/docucal/internal/core"
	"github.com/firstbutton/docucal/internal/models"
	"github.com/firstbutton/docucal/internal/upload"
)

// Review shell verbs
const (
	verbList   = "list"
	verbColor  = "color"
	verbRemove = "remove"
	verbCommit = "commit"
	verbCancel = "cancel"
	verbLogin  = "login"
	verbColors = "colors"
	verbHelp   = "help"
)

var verbAliases = map[string]string{
	"ls":     verbList,
	"l":      verbList,
	"c":      verbColor,
	"colour": verbColor,
	"tag":    verbColor,
	"rm":     verbRemove,
	"del":    verbRemove,
	"upload": verbCommit,
	"send":   verbCommit,
	"quit":   verbCancel,
	"q":      verbCancel,
	"exit":   verbCancel,
	"?":      verbHelp,
	"h":      verbHelp,
}

// allItems marks a color command that targets every staged file.
const allItems = -1

var errUsage = errors.New("usage")

// shellCommand is one parsed review shell line. Index is 0-based.
type shellCommand struct {
	verb  string
	index int
	tag   models.Tag
}

// parseShellCommand parses a review shell line. Item numbers are 1-based on
// input; "all" selects every item for color.
func parseShellCommand(line string) (shellCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return shellCommand{}, nil
	}

	verb := strings.ToLower(fields[0])
	if alias, ok := verbAliases[verb]; ok {
		verb = alias
	}
	args := fields[1:]

	switch verb {
	case verbList, verbCommit, verbCancel, verbLogin, verbColors, verbHelp:
		if len(args) != 0 {
			return shellCommand{}, fmt.Errorf("%w: %s takes no arguments", errUsage, verb)
		}
		return shellCommand{verb: verb}, nil

	case verbColor:
		if len(args) != 2 {
			return shellCommand{}, fmt.Errorf("%w: color <n|all> <colour>", errUsage)
		}
		index := allItems
		if !strings.EqualFold(args[0], "all") {
			n, err := parseItemNumber(args[0])
			if err != nil {
				return shellCommand{}, err
			}
			index = n
		}
		tag, err := models.ParseTag(args[1])
		if err != nil {
			return shellCommand{}, err
		}
		return shellCommand{verb: verb, index: index, tag: tag}, nil

	case verbRemove:
		if len(args) != 1 {
			return shellCommand{}, fmt.Errorf("%w: remove <n>", errUsage)
		}
		n, err := parseItemNumber(args[0])
		if err != nil {
			return shellCommand{}, err
		}
		return shellCommand{verb: verb, index: n}, nil
	}

	return shellCommand{}, fmt.Errorf("unknown command %q (type 'help')", fields[0])
}

func parseItemNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid file number %q", s)
	}
	return n - 1, nil
}

// reviewShell is the interactive editor over the staging set.
type reviewShell struct {
	page *core.Page
	in   *bufio.Reader
	out  io.Writer

	// last is the most recent commit outcome
	last *upload.BatchOutcome
}

func newReviewShell(page *core.Page, in *bufio.Reader, out io.Writer) *reviewShell {
	return &reviewShell{page: page, in: in, out: out}
}

// Run loops until the set is committed, cancelled, input ends, or ctx is done.
func (s *reviewShell) Run(ctx context.Context) (*upload.BatchOutcome, error) {
	s.printList()
	fmt.Fprintln(s.out, "Type 'help' for commands.")

	for s.page.Set().ReviewOpen() {
		if ctx.Err() != nil {
			return s.last, ctx.Err()
		}

		line, err := promptLine(s.in, s.out, "docucal> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return s.last, nil
			}
			return s.last, err
		}

		cmd, err := parseShellCommand(line)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			continue
		}
		if done := s.dispatch(ctx, cmd); done {
			break
		}
	}
	return s.last, nil
}

// dispatch runs one command; it returns true when the shell should exit.
func (s *reviewShell) dispatch(ctx context.Context, cmd shellCommand) bool {
	switch cmd.verb {
	case "":
	case verbList:
		s.printList()
	case verbColors:
		printColors(s.out)
	case verbHelp:
		printShellHelp(s.out)
	case verbColor:
		var err error
		if cmd.index == allItems {
			err = s.page.Set().SetAllTags(cmd.tag)
		} else {
			err = s.page.SetTag(cmd.index, cmd.tag)
		}
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return false
		}
		s.printList()
	case verbRemove:
		if err := s.page.Remove(cmd.index); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return false
		}
		if s.page.Set().ReviewOpen() {
			s.printList()
		} else {
			fmt.Fprintln(s.out, "All files removed.")
		}
	case verbCancel:
		s.page.Cancel()
		fmt.Fprintln(s.out, "Cancelled; the staged files were discarded.")
		return true
	case verbLogin:
		if _, err := runLogin(s.page, s.out, ""); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	case verbCommit:
		s.commit(ctx)
	}
	return false
}

func (s *reviewShell) commit(ctx context.Context) {
	out, err := s.page.Commit(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.last = out
	printOutcome(s.out, out)
	if out.AbortedBy == upload.OutcomeAuthRequired {
		fmt.Fprintln(s.out, "Type 'login' to sign in again, then 'commit' to retry.")
	}
}

func (s *reviewShell) printList() {
	printStaged(s.out, s.page.Set().Items())
}

func printStaged(w io.Writer, items []models.StagedFile) {
	fmt.Fprintf(w, "\n%d file(s) staged:\n", len(items))
	for i, it := range items {
		fmt.Fprintf(w, "  %2d. %-40s %10s  colour %s\n", i+1, it.File.Name, formatBytes(it.File.Size), it.Tag)
	}
	fmt.Fprintln(w)
}

func printColors(w io.Writer) {
	fmt.Fprintln(w, "Calendar colours:")
	for _, t := range models.AllTags() {
		fmt.Fprintf(w, "  %2d  %s\n", int(t), t.Name())
	}
}

func printShellHelp(w io.Writer) {
	fmt.Fprint(w, `Commands:
  list                   Show the staged files
  color <n|all> <colour> Set the calendar colour (number 1-11 or name)
  remove <n>             Unstage file n
  commit                 Upload every staged file, in order
  cancel                 Discard the staged files and quit
  login                  Sign in again (after "login required")
  colors                 List the colour palette
`)
}

// printOutcome reports a finished commit the way the user sees it.
func printOutcome(w io.Writer, out *upload.BatchOutcome) {
	for _, warning := range out.Warnings() {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	if failed, ok := out.Failed(); ok && failed.Err != nil && failed.Kind == upload.OutcomeFailure {
		fmt.Fprintf(w, "  %v\n", failed.Err)
	}

	switch {
	case out.Success():
		created := 0
		for _, it := range out.Items {
			created += it.Created()
		}
		fmt.Fprintf(w, "%s (%d file(s), %d event(s))\n", out.Message, out.Succeeded, created)
	case out.AbortedBy == upload.OutcomeSuccess:
		fmt.Fprintln(w, out.Message)
	default:
		fmt.Fprintf(w, "%s %d of %d file(s) uploaded.\n", out.Message, out.Succeeded, out.Total)
	}
}

// formatBytes returns a human-readable byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
