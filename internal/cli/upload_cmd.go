package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/firstbutton/docucal/internal/core"
	"github.com/firstbutton/docucal/internal/models"
	"github.com/firstbutton/docucal/internal/upload"
)

var errUploadFailed = errors.New("upload did not complete")

// newUploadCmd creates the 'upload' command.
func newUploadCmd() *cobra.Command {
	var (
		color string
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Stage documents and upload them to your calendar",
		Long: `Stage one or more documents (.jpg, .jpeg, .png, .pdf) and upload them.

Each file is tagged with a calendar colour (default 1, Lavender). Without
--yes a review shell opens where you can change colours, remove files and
then commit. Files are uploaded one at a time, in the order given; the first
failure stops the rest and keeps everything staged.

Glob patterns are expanded, e.g. docucal upload "~/Scans/*.pdf".

Examples:
  docucal upload ticket.pdf invite.png
  docucal upload --color tomato --yes receipts/*.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tag models.Tag
			if color != "" {
				t, err := models.ParseTag(color)
				if err != nil {
					return err
				}
				tag = t
			}

			a, err := newApp(GetContext(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if tag == 0 {
				tag = a.cfg.DefaultColor
			}
			return runUpload(a, cmd.OutOrStdout(), stdinReader, args, tag, yes)
		},
	}

	cmd.Flags().StringVar(&color, "color", "", "Colour for every file: 1-11 or a name (see 'docucal colors')")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Upload immediately without opening the review shell")

	return cmd
}

// runUpload gates on the session, stages args, then commits directly or via
// the review shell.
func runUpload(a *app, out io.Writer, in *bufio.Reader, args []string, tag models.Tag, yes bool) error {
	ctx := GetContext()
	page := a.page

	loginURL, err := page.RequestPicker(ctx)
	if err != nil {
		if !isLoginRequired(err) {
			return err
		}
		fmt.Fprintln(out, msgLoginFirst)
		if loginURL == "" {
			return fmt.Errorf("%s: %w", msgServerUnreachable, err)
		}
		if _, err := finishLogin(page, out, loginURL, ""); err != nil {
			return err
		}
		fmt.Fprintln(out, "Run the upload again to pick your files.")
		return nil
	}

	rejected, err := page.FilesPicked(args)
	if err != nil {
		return err
	}
	for _, r := range rejected {
		fmt.Fprintf(out, "Skipping %s: %v\n", r.Path, r.Err)
	}
	if !page.Set().ReviewOpen() {
		return fmt.Errorf("no documents to upload")
	}

	if tag != models.DefaultTag {
		if err := page.Set().SetAllTags(tag); err != nil {
			return err
		}
	}

	if !yes {
		fmt.Fprintf(out, "Hello, %s!\n", page.Session().DisplayName())
		// Failures inside the shell are reported there; the exit code stays 0
		_, err := newReviewShell(page, in, out).Run(ctx)
		return err
	}

	printStaged(out, page.Set().Items())
	outcome, err := page.Commit(ctx)
	if err != nil {
		return err
	}
	printOutcome(out, outcome)

	switch {
	case outcome.Success():
		return nil
	case outcome.AbortedBy == upload.OutcomeAuthRequired:
		return core.ErrLoginRequired
	case outcome.AbortedBy == upload.OutcomeCancelled:
		return context.Canceled
	default:
		return errUploadFailed
	}
}

// newColorsCmd creates the 'colors' command.
func newColorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "colors",
		Aliases: []string{"colours"},
		Short:   "List the calendar colour palette",
		Run: func(cmd *cobra.Command, args []string) {
			printColors(cmd.OutOrStdout())
		},
	}
}

// newVersionCmd creates the 'version' command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docucal %s (built %s)\n", Version, BuildTime)
		},
	}
}
