package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/rpggio/promptkeeper/internal/domain/prompt"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// PromptLibrary defines the subset of the prompt library the CLI uses.
type PromptLibrary interface {
	GetAll(ctx context.Context) []prompt.Prompt
	Create(ctx context.Context, req prompt.CreateRequest) (*prompt.Prompt, bool)
	Update(ctx context.Context, id string, patch prompt.Patch) bool
	Delete(ctx context.Context, id string) bool
	IncrementUsage(ctx context.Context, id string) bool
	ToggleFavorite(ctx context.Context, id string) bool
	Search(ctx context.Context, query string) []prompt.Prompt
	MostUsed(ctx context.Context, limit int) []prompt.Prompt
	Favorites(ctx context.Context) []prompt.Prompt
	Export(ctx context.Context) []byte
	Import(ctx context.Context, data []byte, merge bool) prompt.ImportResult
	Clear(ctx context.Context) bool
	Stats(ctx context.Context) *prompt.Stats
	Seed(ctx context.Context) bool
}

// PromptsCmd handles prompt operations.
type PromptsCmd struct {
	library PromptLibrary
	out     io.Writer
}

func (c PromptsCmd) stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}

func (c PromptsCmd) notify(printer pterm.PrefixPrinter, format string, a ...any) {
	_, _ = fmt.Fprint(c.stdout(), printer.Sprintln(fmt.Sprintf(format, a...)))
}

func (c PromptsCmd) table(rows pterm.TableData) error {
	return PrintTableNoPad(c.stdout(), rows, true)
}

// List prints every prompt.
func (c PromptsCmd) List(ctx context.Context) error {
	prompts := c.library.GetAll(ctx)
	if len(prompts) == 0 {
		c.notify(pterm.Info, "No prompts saved")
		return nil
	}
	return c.table(promptRows(prompts))
}

// AddPromptInput holds input for adding a prompt.
type AddPromptInput struct {
	Title   string
	Content string
	Tags    []string
}

// Add saves a new prompt.
func (c PromptsCmd) Add(ctx context.Context, in AddPromptInput) error {
	p, ok := c.library.Create(ctx, prompt.CreateRequest{Title: in.Title, Content: in.Content, Tags: in.Tags})
	if !ok {
		return errors.New("prompt not saved: title and content are required")
	}
	c.notify(pterm.Success, "Saved prompt %s", p.ID)
	return nil
}

// EditPromptInput holds input for editing a prompt. Nil fields are kept.
type EditPromptInput struct {
	ID       string
	Title    *string
	Content  *string
	Tags     *[]string
	Favorite *bool
}

// Edit updates a prompt.
func (c PromptsCmd) Edit(ctx context.Context, in EditPromptInput) error {
	if in.Title == nil && in.Content == nil && in.Tags == nil && in.Favorite == nil {
		return errors.New("nothing to change: pass --title, --content, --tag or --favorite")
	}
	ok := c.library.Update(ctx, in.ID, prompt.Patch{
		Title:    in.Title,
		Content:  in.Content,
		Tags:     in.Tags,
		Favorite: in.Favorite,
	})
	if !ok {
		return fmt.Errorf("prompt %s not updated", in.ID)
	}
	c.notify(pterm.Success, "Prompt %s updated", in.ID)
	return nil
}

// Remove deletes a prompt.
func (c PromptsCmd) Remove(ctx context.Context, id string) error {
	if !c.library.Delete(ctx, id) {
		return fmt.Errorf("prompt %s not deleted", id)
	}
	c.notify(pterm.Success, "Prompt %s deleted", id)
	return nil
}

// Use prints a prompt's content and counts the use.
func (c PromptsCmd) Use(ctx context.Context, id string) error {
	p, ok := lo.Find(c.library.GetAll(ctx), func(p prompt.Prompt) bool { return p.ID == id })
	if !ok {
		return fmt.Errorf("prompt %s not found", id)
	}
	if _, err := fmt.Fprintln(c.stdout(), p.Content); err != nil {
		return err
	}
	if !c.library.IncrementUsage(ctx, id) {
		c.notify(pterm.Warning, "Usage was not recorded")
	}
	return nil
}

// Favorite toggles the favorite flag.
func (c PromptsCmd) Favorite(ctx context.Context, id string) error {
	if !c.library.ToggleFavorite(ctx, id) {
		return fmt.Errorf("prompt %s not updated", id)
	}
	c.notify(pterm.Success, "Toggled favorite on %s", id)
	return nil
}

// Search prints prompts matching query.
func (c PromptsCmd) Search(ctx context.Context, query string) error {
	prompts := c.library.Search(ctx, query)
	if len(prompts) == 0 {
		c.notify(pterm.Info, "No prompts match %q", query)
		return nil
	}
	return c.table(promptRows(prompts))
}

// Top prints the most used prompts.
func (c PromptsCmd) Top(ctx context.Context, limit int) error {
	prompts := c.library.MostUsed(ctx, limit)
	if len(prompts) == 0 {
		c.notify(pterm.Info, "No prompt has been used yet")
		return nil
	}
	return c.table(promptRows(prompts))
}

// Favorites prints favorite prompts.
func (c PromptsCmd) Favorites(ctx context.Context) error {
	prompts := c.library.Favorites(ctx)
	if len(prompts) == 0 {
		c.notify(pterm.Info, "No favorites")
		return nil
	}
	return c.table(promptRows(prompts))
}

// ExportInput holds input for exporting.
type ExportInput struct {
	Output string
}

// Export writes the snapshot to a file, or stdout when Output is empty or "-".
func (c PromptsCmd) Export(ctx context.Context, in ExportInput) error {
	data := c.library.Export(ctx)
	if data == nil {
		return errors.New("export failed")
	}
	if in.Output == "" || in.Output == "-" {
		_, err := c.stdout().Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(in.Output, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", in.Output, err)
	}
	c.notify(pterm.Success, "Exported to %s", in.Output)
	return nil
}

// ImportInput holds input for importing.
type ImportInput struct {
	Data    []byte
	Replace bool
}

// Import merges (or replaces with) a snapshot.
func (c PromptsCmd) Import(ctx context.Context, in ImportInput) error {
	result := c.library.Import(ctx, in.Data, !in.Replace)
	for _, msg := range result.Errors {
		c.notify(pterm.Warning, "%s", msg)
	}
	if !result.Success {
		return errors.New("import failed")
	}
	c.notify(pterm.Success, "Imported %d prompts", result.ImportedCount)
	return nil
}

// Clear removes every prompt once confirmed.
func (c PromptsCmd) Clear(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return errors.New("refusing to clear without --yes")
	}
	if !c.library.Clear(ctx) {
		return errors.New("clear failed")
	}
	c.notify(pterm.Success, "All prompts removed")
	return nil
}

// Stats prints collection statistics.
func (c PromptsCmd) Stats(ctx context.Context) error {
	stats := c.library.Stats(ctx)
	if stats == nil {
		return errors.New("stats unavailable")
	}

	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Prompts", pterm.Sprint(stats.Count)})
	rows = append(rows, []string{"Total size", pterm.Sprintf("%d bytes", stats.TotalSize)})
	rows = append(rows, []string{"Average size", pterm.Sprintf("%d bytes", stats.AverageSize)})
	if stats.OldestCreatedAt != nil {
		rows = append(rows, []string{"Oldest", stats.OldestCreatedAt.Local().Format("2006-01-02 15:04:05")})
		rows = append(rows, []string{"Newest", stats.NewestCreatedAt.Local().Format("2006-01-02 15:04:05")})
	}
	return c.table(rows)
}

// Seed installs the sample prompts on first use.
func (c PromptsCmd) Seed(ctx context.Context) error {
	if c.library.Seed(ctx) {
		c.notify(pterm.Success, "Sample prompts installed")
		return nil
	}
	c.notify(pterm.Info, "Sample prompts were already installed")
	return nil
}

// --- Cobra wiring ---

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List prompts",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return promptsCmd(cmd).List(cmd.Context())
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a new prompt",
	Long:  "Save a new prompt. Pass --content - to read the content from stdin",
	Args:  cobra.NoArgs,
	RunE:  runAdd,
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return promptsCmd(cmd).Remove(cmd.Context(), args[0])
	},
}

var useCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Print a prompt's content and record the use",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return promptsCmd(cmd).Use(cmd.Context(), args[0])
	},
}

var favCmd = &cobra.Command{
	Use:   "fav <id>",
	Short: "Toggle a prompt's favorite flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return promptsCmd(cmd).Favorite(cmd.Context(), args[0])
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search titles, content and tags",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return promptsCmd(cmd).Search(cmd.Context(), strings.Join(args, " "))
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the most used prompts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return promptsCmd(cmd).Top(cmd.Context(), limit)
	},
}

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "Show favorite prompts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return promptsCmd(cmd).Favorites(cmd.Context())
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all prompts as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return promptsCmd(cmd).Export(cmd.Context(), ExportInput{Output: output})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import prompts from an export file",
	Long:  "Import prompts from an export file (- for stdin). Duplicates are skipped unless --replace is given",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every prompt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		return promptsCmd(cmd).Clear(cmd.Context(), yes)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return promptsCmd(cmd).Stats(cmd.Context())
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Install the sample prompts if this store has never been seeded",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return promptsCmd(cmd).Seed(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(listCmd, addCmd, editCmd, rmCmd, useCmd, favCmd, searchCmd, topCmd,
		favoritesCmd, exportCmd, importCmd, clearCmd, statsCmd, seedCmd)

	addCmd.Flags().String("title", "", "Prompt title (required)")
	addCmd.Flags().String("content", "", "Prompt text, or - to read stdin (required)")
	addCmd.Flags().StringSlice("tag", nil, "Tag to attach (repeatable)")
	_ = addCmd.MarkFlagRequired("title")
	_ = addCmd.MarkFlagRequired("content")

	editCmd.Flags().String("title", "", "New title")
	editCmd.Flags().String("content", "", "New prompt text, or - to read stdin")
	editCmd.Flags().StringSlice("tag", nil, "Replace tags (repeatable)")
	editCmd.Flags().Bool("favorite", false, "Set the favorite flag")

	topCmd.Flags().Int("limit", prompt.DefaultMostUsed, "Maximum number of prompts")
	exportCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	importCmd.Flags().Bool("replace", false, "Replace the collection instead of merging")
	clearCmd.Flags().Bool("yes", false, "Confirm removing every prompt")
}

func promptsCmd(cmd *cobra.Command) PromptsCmd {
	return PromptsCmd{library: getApp(cmd).library, out: cmd.OutOrStdout()}
}

func readContent(cmd *cobra.Command, value string) (string, error) {
	if value != "-" {
		return value, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	title, _ := cmd.Flags().GetString("title")
	raw, _ := cmd.Flags().GetString("content")
	tags, _ := cmd.Flags().GetStringSlice("tag")

	content, err := readContent(cmd, raw)
	if err != nil {
		return err
	}

	return promptsCmd(cmd).Add(cmd.Context(), AddPromptInput{
		Title:   title,
		Content: content,
		Tags:    tags,
	})
}

func runEdit(cmd *cobra.Command, args []string) error {
	in := EditPromptInput{ID: args[0]}

	if cmd.Flags().Changed("title") {
		title, _ := cmd.Flags().GetString("title")
		in.Title = &title
	}
	if cmd.Flags().Changed("content") {
		raw, _ := cmd.Flags().GetString("content")
		content, err := readContent(cmd, raw)
		if err != nil {
			return err
		}
		in.Content = &content
	}
	if cmd.Flags().Changed("tag") {
		tags, _ := cmd.Flags().GetStringSlice("tag")
		in.Tags = &tags
	}
	if cmd.Flags().Changed("favorite") {
		favorite, _ := cmd.Flags().GetBool("favorite")
		in.Favorite = &favorite
	}

	return promptsCmd(cmd).Edit(cmd.Context(), in)
}

func runImport(cmd *cobra.Command, args []string) error {
	replace, _ := cmd.Flags().GetBool("replace")

	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	return promptsCmd(cmd).Import(cmd.Context(), ImportInput{Data: data, Replace: replace})
}
