// Command storyctl checks, inspects and plays story files.
package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/NarrativeEngine/internal/codec"
	"github.com/AaronLay10/NarrativeEngine/internal/config"
	"github.com/AaronLay10/NarrativeEngine/internal/narrative"
	"github.com/AaronLay10/NarrativeEngine/internal/orchestrator"
	"github.com/AaronLay10/NarrativeEngine/internal/storage"
	"github.com/AaronLay10/NarrativeEngine/internal/version"

	_ "github.com/AaronLay10/NarrativeEngine/internal/storage/postgres"
	_ "github.com/AaronLay10/NarrativeEngine/internal/storage/redis"
	_ "github.com/AaronLay10/NarrativeEngine/internal/storage/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storyctl",
		Short:         "Check, inspect and play narrative story files",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCmd(), newTagsCmd(), newPlayCmd(), newSavesCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <story>...",
		Short: "Load stories and check that every node reference resolves",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var failed int
			for _, path := range args {
				story, err := orchestrator.LoadStory(path)
				if err == nil {
					err = story.Graph.Validate()
				}
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s\n  %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "ok   %s (%s, %d nodes)\n", path, story.ID, story.Graph.Len())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d stories invalid", failed, len(args))
			}
			return nil
		},
	}
}

func newTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the node, condition and action types stories may use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := codec.Default()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, family := range []struct {
				name string
				tags []string
			}{
				{"node", c.NodeTypes().AllTags()},
				{"condition", c.ConditionTypes().AllTags()},
				{"action", c.ActionTypes().AllTags()},
			} {
				sort.Strings(family.tags)
				for _, tag := range family.tags {
					fmt.Fprintf(w, "%s\t%s\n", family.name, tag)
				}
			}
			return w.Flush()
		},
	}
}

func newPlayCmd() *cobra.Command {
	var entry string
	cmd := &cobra.Command{
		Use:   "play <story>",
		Short: "Play a story in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			story, err := orchestrator.LoadStory(args[0])
			if err != nil {
				return err
			}
			rt := orchestrator.NewRuntime(story)
			if err := rt.Start(narrative.NodeRef(entry)); err != nil {
				return err
			}
			return play(rt, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&entry, "entry", "", "node to start at instead of the story entry")
	return cmd
}

func newSavesCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "saves",
		Short: "List the saves in the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			saves, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tSTORY\tSAVED\tBYTES")
			for _, s := range saves {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.SessionID, s.StoryID, s.SavedAt.Format(time.RFC3339), len(s.Snapshot))
			}
			return w.Flush()
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "engine.yaml", "engine config file")

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session>",
		Short: "Delete the save of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, storage.ErrSaveNotFound) {
					return fmt.Errorf("no save for session %q", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func openStore(configPath string) (storage.SaveStore, error) {
	cfg, err := config.LoadEngineConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", configPath, err)
	}
	return storage.Open(cfg.Storage)
}
