package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/promptvault/internal/ingest"
	"github.com/thebtf/promptvault/internal/library"
	"github.com/thebtf/promptvault/internal/normalize"
	"github.com/thebtf/promptvault/internal/search"
	"github.com/thebtf/promptvault/pkg/models"
)

// withApp wires the components, runs fn and closes the store.
func withApp(opts *rootOptions, fn func(a *app) error) error {
	a, err := newApp(opts.cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import prompts from .xlsx, .xls, .csv, .docx or .txt files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				var failed error
				for _, path := range args {
					data, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					obs := ingest.ObserverFunc(func(e ingest.Event) {
						log.Info().Str("state", string(e.State)).Msg(e.Message)
					})
					rep, err := a.pipeline.Run(cmd.Context(), ingest.Request{
						UserID:   opts.cfg.DefaultUser,
						FileName: filepath.Base(path),
						Data:     data,
					}, obs)
					if err != nil {
						failed = errors.Join(failed, fmt.Errorf("%s: %s", path, ingest.UserMessage(err)))
					}
					if asJSON {
						if err := writeJSON(cmd.OutOrStdout(), rep); err != nil {
							return err
						}
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d saved, %d enriched, %d fallback\n",
						path, rep.State, rep.Saved, rep.Enriched, rep.Fallbacks)
				}
				return failed
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print import reports as JSON")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		params search.SearchParams
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "list [QUERY]",
		Aliases: []string{"search"},
		Short:   "List prompts, newest first, optionally filtered by a search term",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				params.Query = args[0]
			}
			params.UserID = opts.cfg.DefaultUser
			return withApp(opts, func(a *app) error {
				res, err := a.library.Search(cmd.Context(), params)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				for _, p := range res.Prompts {
					printPrompt(cmd.OutOrStdout(), p)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d prompts\n", len(res.Prompts), res.TotalCount)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&params.Tag, "tag", "", "Only prompts carrying this tag")
	f.StringVar(&params.OrderBy, "order", search.OrderDateDesc, "Ordering: date_desc or relevance")
	f.IntVar(&params.Limit, "limit", search.DefaultLimit, "Maximum prompts to show")
	f.IntVar(&params.Offset, "offset", 0, "Prompts to skip")
	f.BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var enrichIt bool
	cmd := &cobra.Command{
		Use:   "add TEXT",
		Short: "Add one prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				p, err := a.library.Add(cmd.Context(), library.AddRequest{
					UserID: opts.cfg.DefaultUser,
					Text:   strings.Join(args, " "),
					Enrich: enrichIt,
				})
				if err != nil {
					return err
				}
				printPrompt(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&enrichIt, "enrich", false, "Tag and describe the prompt with the model")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete prompts by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				for _, id := range args {
					if err := a.library.Delete(cmd.Context(), opts.cfg.DefaultUser, id); err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				}
				return nil
			})
		},
	}
}

func newDeleteAllCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every prompt of the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to delete the whole library without --yes")
			}
			return withApp(opts, func(a *app) error {
				n, err := a.library.DeleteAll(cmd.Context(), opts.cfg.DefaultUser)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d prompts\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

func newVisualizeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "visualize ID",
		Short: "Generate and store a short visual description of a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				p, err := a.library.Visualize(cmd.Context(), opts.cfg.DefaultUser, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.SampleDescription)
				return nil
			})
		},
	}
}

func newEnhanceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enhance ID",
		Short: "Print a more vivid rewrite of a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				text, err := a.library.Enhance(cmd.Context(), opts.cfg.DefaultUser, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

func newTagsCmd(opts *rootOptions) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Show the most used tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app) error {
				tags, err := a.library.TopTags(cmd.Context(), opts.cfg.DefaultUser, n)
				if err != nil {
					return err
				}
				for _, t := range tags {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", t.Tag, t.Count)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", library.DefaultTagSuggestions, "Number of tags")
	return cmd
}

func newRulesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect or export the cleaning rules",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "List the active cleaning rules",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				n, err := normalize.Load(opts.cfg.RulesPath)
				if err != nil {
					return err
				}
				for _, name := range n.Rules() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "export",
			Short: "Write the built-in rules to the rules file for editing",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path := opts.cfg.RulesPath
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists", path)
				}
				if err := os.WriteFile(path, normalize.DefaultRules(), 0600); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			},
		},
	)
	return cmd
}

func printPrompt(w io.Writer, p *models.Prompt) {
	fmt.Fprintf(w, "%s\t%s\t[%s]\t%s\n",
		p.ID, p.CreatedAt.Local().Format("2006-01-02 15:04"), strings.Join(p.Tags, ", "), p.OriginalText)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
