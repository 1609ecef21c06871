package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"artdedup/internal/api"
	"artdedup/internal/config"
	"artdedup/internal/daemonrun"
	"artdedup/internal/fileutil"
	"artdedup/internal/services"
	"artdedup/internal/store"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Add and inspect catalog records",
	}
	catalogCmd.AddCommand(newCatalogAddCommand(ctx))
	catalogCmd.AddCommand(newCatalogShowCommand(ctx))
	catalogCmd.AddCommand(newCatalogNumberCommand(ctx))
	return catalogCmd
}

func newCatalogAddCommand(ctx *commandContext) *cobra.Command {
	var (
		art     store.Artwork
		year    int
		images  []string
		number  bool
		noCheck bool
		copyImg bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an artwork and check it for duplicates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(art.Title) == "" {
				return services.Wrap(services.ErrValidation, "cli", "catalog add", "--title is required", nil)
			}
			if cmd.Flags().Changed("year") {
				art.Year = &year
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStack(func(stack *daemonrun.Stack) error {
				entry, err := addArtwork(cmd, cfg, stack, &art, images, copyImg, number, !noCheck)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entry)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Added artwork %d", entry.Artwork.ID)
				if entry.Artwork.CatalogNumber != "" {
					fmt.Fprintf(out, " as %s", entry.Artwork.CatalogNumber)
				}
				fmt.Fprintln(out)
				if !noCheck {
					printMatches(cmd, &api.CheckResponse{ArtworkID: entry.Artwork.ID, Matches: entry.Matches})
				}
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&art.Title, "title", "", "Title (required)")
	flags.IntVar(&year, "year", 0, "Year of creation")
	flags.BoolVar(&art.YearCirca, "circa", false, "Mark the year as approximate")
	flags.StringVar(&art.Medium, "medium", "", "Medium, e.g. \"Oil on canvas\"")
	flags.StringVar(&art.Dimensions, "dimensions", "", "Dimensions as written on the record")
	flags.StringVar(&art.ArtType, "type", "", "Art type, e.g. painting or print")
	flags.StringVar(&art.Description, "description", "", "Free-text description")
	flags.StringVar(&art.Provenance, "provenance", "", "Provenance")
	flags.StringVar(&art.SourcePlatform, "source-platform", "", "Platform the record came from")
	flags.StringVar(&art.SourceURL, "source-url", "", "Source URL")
	flags.StringSliceVar(&images, "image", nil, "Image file to attach; repeatable, the first becomes primary")
	flags.BoolVar(&copyImg, "copy", false, "Copy images into paths.image_dir instead of referencing them in place")
	flags.BoolVar(&number, "number", false, "Assign the next catalog number")
	flags.BoolVar(&noCheck, "no-check", false, "Skip the duplicate check")
	return cmd
}

func addArtwork(cmd *cobra.Command, cfg *config.Config, stack *daemonrun.Stack, art *store.Artwork, images []string, copyImages, number, check bool) (*api.CatalogEntry, error) {
	ctx := cmd.Context()
	created, err := stack.Store.CreateArtwork(ctx, art)
	if err != nil {
		return nil, err
	}
	for _, path := range images {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return nil, err
		}
		if copyImages {
			if strings.TrimSpace(cfg.Paths.ImageDir) == "" {
				return nil, services.Wrap(services.ErrValidation, "cli", "catalog add", "--copy needs paths.image_dir", nil)
			}
			if expanded, err = fileutil.ImportImage(cfg.Paths.ImageDir, expanded); err != nil {
				return nil, services.Wrap(services.ErrUnreadableImage, "cli", "import image", path, err)
			}
		}
		if _, err := stack.Store.AddImage(ctx, &store.Image{ArtworkID: created.ID, Path: expanded}); err != nil {
			return nil, err
		}
	}
	if number {
		if _, _, err := stack.Store.AssignCatalogNumber(ctx, created.ID, cfg.Catalog.NumberPrefix, cfg.Catalog.NumberWidth); err != nil {
			return nil, err
		}
		if created, err = stack.Store.GetArtwork(ctx, created.ID); err != nil {
			return nil, err
		}
	}
	entry := &api.CatalogEntry{Artwork: api.FromArtwork(created), Relationships: []api.Relationship{}}
	if check {
		resp, err := stack.Service.CheckRecord(ctx, created.ID)
		if err != nil {
			return nil, err
		}
		entry.Matches = resp.Matches
	}
	return entry, nil
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <artwork-id>",
		Short: "Show an artwork and its relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStack(func(stack *daemonrun.Stack) error {
				art, err := stack.Store.GetArtwork(cmd.Context(), id)
				if err != nil {
					if into, merged, lookupErr := stack.Store.MergedAwayInto(cmd.Context(), id); lookupErr == nil && merged {
						return fmt.Errorf("%w (merged into artwork %d)", err, into)
					}
					return err
				}
				rels, err := stack.Store.ListRelationships(cmd.Context(), id)
				if err != nil {
					return err
				}
				entry := api.CatalogEntry{Artwork: api.FromArtwork(art), Relationships: make([]api.Relationship, 0, len(rels))}
				for _, r := range rels {
					entry.Relationships = append(entry.Relationships, api.FromRelationship(r))
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entry)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable([]string{"Field", "Value"}, artworkRows(entry.Artwork), nil, ""))
				if len(entry.Relationships) > 0 {
					fmt.Fprint(out, renderTable(
						[]string{"ID", "From", "Kind", "To", "Note"},
						buildRelationshipRows(entry.Relationships),
						[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft},
						"",
					))
				}
				return nil
			})
		},
	}
}

func newCatalogNumberCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "number <artwork-id>",
		Short: "Assign the next catalog number to an artwork that has none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStack(func(stack *daemonrun.Stack) error {
				number, assigned, err := stack.Store.AssignCatalogNumber(cmd.Context(), id, cfg.Catalog.NumberPrefix, cfg.Catalog.NumberWidth)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"id": id, "catalogNumber": number, "assigned": assigned})
				}
				if assigned {
					fmt.Fprintf(cmd.OutOrStdout(), "Artwork %d is now %s\n", id, number)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Artwork %d already numbered %s\n", id, number)
				}
				return nil
			})
		},
	}
}

func newRelateCommand(ctx *commandContext) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "relate <from-id> <kind> <to-id>",
		Short: "Record that two distinct works are related",
		Long:  "Record a curatorial relationship (study_for, variant_of, copy_after or pendant_of) between two works that are not duplicates.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseID(args[0])
			if err != nil {
				return err
			}
			to, err := parseID(args[2])
			if err != nil {
				return err
			}
			kind, ok := store.ParseRelationshipKind(args[1])
			if !ok {
				return services.Wrap(services.ErrValidation, "cli", "relate", fmt.Sprintf("unknown relationship kind %q", args[1]), nil)
			}
			return ctx.withStack(func(stack *daemonrun.Stack) error {
				rel, err := stack.Store.AddRelationship(cmd.Context(), from, to, kind, note)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromRelationship(rel))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Artwork %d %s artwork %d (relationship %d)\n", rel.FromID, rel.Kind, rel.ToID, rel.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Curatorial note")
	return cmd
}

func buildRelationshipRows(rels []api.Relationship) [][]string {
	rows := make([][]string, 0, len(rels))
	for _, r := range rels {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			strconv.FormatInt(r.FromID, 10),
			r.Kind,
			strconv.FormatInt(r.ToID, 10),
			orDash(r.Note),
		})
	}
	return rows
}
