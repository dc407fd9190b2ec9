package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngmaloney/park-terminal/internal/form"
	"github.com/ngmaloney/park-terminal/internal/journal"
	"github.com/ngmaloney/park-terminal/internal/models"
	"github.com/ngmaloney/park-terminal/internal/parklist"
	"github.com/ngmaloney/park-terminal/internal/parksapi"
	"github.com/ngmaloney/park-terminal/internal/prompt"
)

// errShown marks failures that were already reported to the user
var errShown = errors.New("already reported")

var historyLimit int

// newDriver builds the prompt driver used by the interactive subcommands
var newDriver = prompt.NewSurveyDriver

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List parks",
	Long: `Fetches every park and prints the ones matching --search and --city,
ordered by --sort.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a single park",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a park",
	Long: `Prompts for every field, validating as you type, then asks for
confirmation before saving. Failed saves can be retried a bounded
number of times.`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

var editCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit a park",
	Long: `Loads the park, prompts for every field with the current value as
default and shows the changes for confirmation before saving.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a park",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent notifications from the local journal",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func listController() *parklist.Controller {
	return parklist.New(client, caps, parklist.Options{
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	})
}

func formOptions() form.Options {
	return form.Options{
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	q, err := buildQuery()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	list := listController()
	if err := list.Refresh(ctx); err != nil {
		recordFailure(ctx, "list", "", err)
		return friendly(err)
	}
	list.SetQuery(q)

	out := cmd.OutOrStdout()
	parks := list.Visible()
	if len(parks) == 0 {
		fmt.Fprintln(out, "No parks match.")
		return nil
	}

	rows := make([][]string, 0, len(parks))
	for _, p := range parks {
		rows = append(rows, []string{p.ID, p.Name, p.Abbreviation, string(p.City), p.PostalCode})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "NAME", "ABBR", "CITY", "POSTAL CODE").
		Rows(rows...)

	fmt.Fprintln(out, t)
	fmt.Fprintf(out, "%d of %d parks\n", len(parks), len(list.All()))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]

	var park *models.Park
	var err error
	if !caps.Online(ctx) {
		err = &parksapi.Error{Kind: parksapi.KindOffline, Op: "get"}
	} else {
		park, err = client.Get(ctx, id)
	}
	if err != nil {
		recordFailure(ctx, "get", id, err)
		return friendly(err)
	}

	printPark(cmd.OutOrStdout(), *park, models.ResolveImage(*park, cfg.StorageBaseURL))
	return nil
}

func printPark(w io.Writer, p models.Park, image string) {
	fmt.Fprintf(w, "%s\n\n", p.Summary())
	fmt.Fprintf(w, "  ID:           %s\n", p.ID)
	fmt.Fprintf(w, "  Address:      %s\n", p.Address)
	fmt.Fprintf(w, "  City:         %s\n", p.City)
	fmt.Fprintf(w, "  State:        %s\n", p.State)
	fmt.Fprintf(w, "  Postal code:  %s\n", p.PostalCode)
	fmt.Fprintf(w, "  Coordinates:  %.4f, %.4f\n", p.Latitude, p.Longitude)
	fmt.Fprintf(w, "  Image:        %s\n", image)
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	session := prompt.NewSession(newDriver(), recorder)
	ctrl := form.NewCreate(client, caps, formOptions())

	if err := session.FillDraft(ctx, ctrl); err != nil {
		return settle(cmd, err)
	}
	_, err := session.Submit(ctx, ctrl)
	return settle(cmd, err)
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]

	ctrl := form.NewEdit(client, caps, id, formOptions())
	if err := ctrl.Load(ctx); err != nil {
		recordFailure(ctx, "get", id, err)
		return friendly(err)
	}

	session := prompt.NewSession(newDriver(), recorder)
	if err := session.FillDraft(ctx, ctrl); err != nil {
		return settle(cmd, err)
	}
	_, err := session.Submit(ctx, ctrl)
	return settle(cmd, err)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	list := listController()
	if err := list.Refresh(ctx); err != nil {
		recordFailure(ctx, "list", "", err)
		return friendly(err)
	}

	session := prompt.NewSession(newDriver(), recorder)
	return settle(cmd, session.Delete(ctx, list, args[0]))
}

func runHistory(cmd *cobra.Command, args []string) error {
	repo := journal.NewRepository(db)
	entries, err := repo.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No activity recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		park := e.ParkName
		if park == "" {
			park = e.ParkID
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			string(e.Level),
			e.Action,
			park,
			e.Message,
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("TIME", "LEVEL", "ACTION", "PARK", "MESSAGE").
		Rows(rows...)

	fmt.Fprintln(out, t)
	return nil
}

// settle maps the outcome of a prompt flow to the command result. The
// session has already shown any failure.
func settle(cmd *cobra.Command, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, prompt.ErrCancelled), errors.Is(err, prompt.ErrAborted):
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
		return nil
	default:
		return fmt.Errorf("%w: %v", errShown, err)
	}
}

// recordFailure notifies a failure that happened outside a prompt session
func recordFailure(ctx context.Context, action, parkID string, err error) {
	var kind string
	var apiErr *parksapi.Error
	if errors.As(err, &apiErr) {
		kind = apiErr.Kind.String()
	}

	entry := &journal.Entry{
		Level:     journal.LevelError,
		Action:    action,
		ParkID:    parkID,
		Message:   "✗ " + friendly(err).Error(),
		ErrorKind: kind,
	}
	if rerr := recorder.Record(ctx, entry); rerr != nil {
		logger.Warn("recording notification failed", zap.Error(rerr))
	}
}
