// Package shell is the terminal surface: a line-oriented loop over one
// tracker that redraws the summary and the list after every change.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"balance/internal/core"
	"balance/internal/log"
	"balance/internal/tracker"
)

const (
	defaultWidth = 80
	minDescWidth = 10
	prompt       = "balance> "
)

var errQuit = errors.New("quit")

const helpText = `Commands:
  add [income|expense] <amount> <description...>   add a transaction
  rm <id>                                          delete a transaction
  kind <income|expense>                            preselect the kind for add
  ls                                               show summary and transactions
  help                                             show this help
  quit                                             leave the shell
`

// Options configures a Shell.
type Options struct {
	Color  bool
	Width  int
	Logger *log.Logger
}

// Shell reads commands from in and writes the ledger to out.
type Shell struct {
	tracker *tracker.Tracker
	in      io.Reader
	out     io.Writer
	width   int
	logger  *log.Logger

	income *color.Color
	spent  *color.Color
	faint  *color.Color
	bold   *color.Color
}

// New creates a shell over t.
func New(t *tracker.Tracker, in io.Reader, out io.Writer, opts Options) *Shell {
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	s := &Shell{
		tracker: t,
		in:      in,
		out:     out,
		width:   width,
		logger:  logger.WithComponent(log.ComponentShell),
		income:  color.New(color.FgGreen),
		spent:   color.New(color.FgRed),
		faint:   color.New(color.Faint),
		bold:    color.New(color.Bold),
	}
	for _, c := range []*color.Color{s.income, s.spent, s.faint, s.bold} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

// ColorEnabled reports whether f should receive ANSI colors. NO_COLOR wins
// over terminal detection.
func ColorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// TerminalWidth returns the column count of f, or the default when f is not
// a terminal.
func TerminalWidth(f *os.File) int {
	fd := int(f.Fd())
	if term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}

// Run processes commands until quit, end of input or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	s.render(ctx)
	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprint(s.out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := s.Exec(ctx, scanner.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
	}
}

// Exec runs one command line. Input errors are printed, not returned.
func (s *Shell) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	s.logger.DebugContext(ctx, "Command", "command", cmd, "args", len(args))

	switch cmd {
	case "add", "a":
		return s.add(ctx, args)
	case "rm", "del", "delete":
		return s.remove(ctx, args)
	case "kind":
		s.selectKind(args)
	case "ls", "list":
		s.render(ctx)
	case "help", "?":
		fmt.Fprint(s.out, helpText)
	case "quit", "exit", "q":
		return errQuit
	default:
		s.fail(fmt.Sprintf("Unknown command %q. Type help for the list.", cmd))
	}
	return nil
}

func (s *Shell) add(ctx context.Context, args []string) error {
	kind := s.tracker.Form().Kind
	if len(args) > 0 {
		if k, err := core.ParseKind(args[0]); err == nil {
			kind = k
			args = args[1:]
		}
	}
	in := core.DraftInput{Kind: kind}
	if len(args) > 0 {
		in.Amount = args[0]
		in.Description = strings.Join(args[1:], " ")
	}

	if _, err := s.tracker.Submit(ctx, in); err != nil {
		if core.IsValidationError(err) {
			s.fail(core.UserMessage(err))
			return nil
		}
		return err
	}
	s.render(ctx)
	return nil
}

func (s *Shell) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		s.fail("Usage: rm <id>")
		return nil
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		s.fail(fmt.Sprintf("No transaction %s.", args[0]))
		return nil
	}
	removed, err := s.tracker.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		s.fail(fmt.Sprintf("No transaction #%d.", id))
		return nil
	}
	s.render(ctx)
	return nil
}

func (s *Shell) selectKind(args []string) {
	if len(args) != 1 {
		s.fail("Usage: kind <income|expense>")
		return
	}
	k, err := core.ParseKind(args[0])
	if err == nil {
		err = s.tracker.SelectKind(k)
	}
	if err != nil {
		s.fail(core.UserMessage(err))
		return
	}
	fmt.Fprintf(s.out, "New transactions default to %s.\n", k)
}

func (s *Shell) fail(msg string) {
	fmt.Fprintln(s.out, s.spent.Sprint("! "+msg))
}

// render prints the summary cards and the list, newest first.
func (s *Shell) render(ctx context.Context) {
	v, err := s.tracker.View(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read ledger", log.FieldError, err.Error())
		s.fail("Could not load the ledger.")
		return
	}

	balance := s.income
	if v.BalanceNegative {
		balance = s.spent
	}
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "%-10s %s\n", "Balance", balance.Sprint(v.Balance))
	fmt.Fprintf(s.out, "%-10s %s\n", "Income", s.income.Sprint(v.Income))
	fmt.Fprintf(s.out, "%-10s %s\n", "Expenses", s.spent.Sprint(v.Expenses))
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "%s %s\n", s.bold.Sprint("Transactions"), s.faint.Sprintf("(%d)", v.Count))

	if v.Empty {
		fmt.Fprintln(s.out, s.faint.Sprint("  No transactions yet. Add one above!"))
		return
	}

	descWidth := s.width - 38
	if descWidth < minDescWidth {
		descWidth = minDescWidth
	}
	for _, e := range v.Entries {
		amount := s.income
		if !e.Income {
			amount = s.spent
		}
		fmt.Fprintf(s.out, "  %s  %s  %-8s %s\n",
			s.faint.Sprintf("#%-4d", e.ID),
			fit(e.Description, descWidth),
			e.Kind,
			amount.Sprintf("%14s", e.Amount))
	}
}

// fit pads or truncates s to exactly n runes.
func fit(s string, n int) string {
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s + strings.Repeat(" ", n-count)
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
