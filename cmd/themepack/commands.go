package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/podtheme/themepack/pkg/theme"
	"github.com/podtheme/themepack/pkg/theme/export"
	"github.com/podtheme/themepack/pkg/theme/imaging"
	"github.com/podtheme/themepack/pkg/theme/repo"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and user themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			themes, err := a.allThemes(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range themes {
				kind := "built-in"
				if t.IsEditable {
					kind = "user"
				}
				fmt.Printf("%-40s  %-8s  %3d assets  %s\n", t.ID, kind, len(t.LoadedAssets), t.DisplayTitle())
			}
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <theme-id>",
		Short: "Show a theme's metadata and resolved assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.findTheme(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("id:       %s\n", t.ID)
			fmt.Printf("title:    %s\n", t.DisplayTitle())
			if info := t.Spec.ThemeInfo; info != nil {
				fmt.Printf("author:   %s\n", info.Author)
				fmt.Printf("about:    %s\n", info.Description)
			}
			fmt.Printf("editable: %v\n", t.IsEditable)
			if t.OriginalThemeID != "" {
				fmt.Printf("cloned:   %s (%s)\n", t.OriginalThemeID, t.ClonedDate)
			}
			fmt.Printf("assets:   %d\n", len(t.LoadedAssets))
			for _, asset := range t.LoadedAssets {
				fmt.Printf("  %-42s %-22s %s\n", asset.ConfigKey, asset.FileName, asset.Description)
			}
			return nil
		},
	}
}

func newCloneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clone <theme-id>",
		Short: "Create an editable copy of a theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			src, err := a.findTheme(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			clone, err := a.repo.Clone(cmd.Context(), src)
			if err != nil {
				return friendly(err)
			}
			fmt.Printf("cloned %s → %s\n", src.ID, clone.ID)
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <theme-id>",
		Short: "Delete a user theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.repo.Delete(cmd.Context(), args[0]); err != nil {
				return friendly(err)
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}

// editSpec runs one debounced-editor session for a single CLI mutation: edit,
// then flush before exit, same as the UI flushing before a theme switch.
func editSpec(ctx context.Context, a *app, t theme.LoadedTheme, path string, value any) error {
	editor := repo.NewSpecEditor(a.repo, t)
	if err := editor.Edit(path, value); err != nil {
		return err
	}
	return friendly(editor.Close(ctx))
}

func newSetColorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-color <theme-id> <config-key> <#RRGGBB|#AARRGGBB>",
		Short: "Set a color value on a cloned theme",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !theme.IsHexColor(args[2]) {
				return fmt.Errorf("%q is not a #RRGGBB or #AARRGGBB color", args[2])
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.findTheme(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := requireEditable(t); err != nil {
				return err
			}
			return editSpec(cmd.Context(), a, t, args[1], args[2])
		},
	}
}

func newSetInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-info <theme-id> <title|author|authorUrl|description> <value>",
		Short: "Set a metadata field on a cloned theme",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.findTheme(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := requireEditable(t); err != nil {
				return err
			}
			return editSpec(cmd.Context(), a, t, "theme_info."+args[1], args[2])
		},
	}
}

func newSetAssetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-asset <theme-id> <file-name> <source-path>",
		Short: "Replace a declared asset's bytes on a cloned theme",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.findTheme(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := requireEditable(t); err != nil {
				return err
			}
			if err := a.repo.SetAssetFromFile(cmd.Context(), t.ID, args[1], args[2]); err != nil {
				return friendly(err)
			}
			fmt.Printf("updated %s in %s\n", args[1], t.ID)
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <archive.zip>",
		Short: "Import a device theme archive as a user theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			t, err := a.repo.ImportArchive(cmd.Context(), name, data)
			if err != nil {
				return friendly(err)
			}
			fmt.Printf("imported %s (%d assets)\n", t.ID, len(t.LoadedAssets))
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var outPath string
	var withCover bool
	cmd := &cobra.Command{
		Use:   "export <theme-id>",
		Short: "Export a theme as a device-ready ZIP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.findTheme(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			data, name, err := export.Export(ctx, t, export.Options{
				GenerateCover: withCover,
				Logger:        a.logger.Named("export"),
				OnProgress: func(p export.Progress) {
					fmt.Printf("\r%-10s %d/%d %-30s", p.Phase, p.Processed, p.Total, p.CurrentFileName)
				},
			})
			fmt.Println()
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = name
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes)\n", outPath, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (default: <title-slug>.zip)")
	cmd.Flags().BoolVar(&withCover, "cover", false, "Generate a palette cover when the theme has none")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <theme-id>",
		Short: "Estimate an export without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.findTheme(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := export.PreviewExport(t)
			fmt.Printf("files: %d (config.json + %d assets), estimated size: ~%d KiB\n",
				p.FileCount, p.AssetCount, p.EstimatedSize/1024)
			return nil
		},
	}
}

func newDedupCmd() *cobra.Command {
	var exclude string
	cmd := &cobra.Command{
		Use:   "dedup <config-key>",
		Short: "Group same-purpose assets across themes by visual signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			themes, err := a.allThemes(cmd.Context())
			if err != nil {
				return err
			}
			candidates := imaging.FindEquivalents(args[0], exclude, themes)
			groups := imaging.Deduplicate(cmd.Context(), imaging.XXHasher{}, candidates, a.logger.Named("dedup"))
			for _, key := range groups.Order {
				members := groups.ByHash[key]
				fmt.Printf("%s (%d)\n", key, len(members))
				for _, c := range members {
					fmt.Printf("  %-24s %s\n", c.ThemeName, c.FileName)
				}
			}
			fmt.Printf("%d candidates, %d distinct\n", len(candidates), len(groups.Order))
			return nil
		},
	}
	cmd.Flags().StringVar(&exclude, "exclude", "", "Theme id to leave out of the search")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Rescan the bundle directory whenever theme packages change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("watching %s (ctrl-c to stop)\n", themesDir)
			return a.repo.Watch(ctx, func(themes []theme.LoadedTheme) {
				fmt.Printf("rescan: %d built-in themes\n", len(themes))
				for _, t := range themes {
					fmt.Printf("  %-40s %3d assets\n", t.ID, len(t.LoadedAssets))
				}
			})
		},
	}
}
