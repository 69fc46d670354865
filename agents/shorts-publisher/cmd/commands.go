package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	shortspublisher "shorts-stack/agents/shorts-publisher"
	"shorts-stack/internal/models"
	"shorts-stack/shared/config"
	"shorts-stack/shared/logging"
	"shorts-stack/shared/storage"
)

type commandContext struct {
	configPath *string
}

func (c *commandContext) load() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadFrom(*c.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func (c *commandContext) app() (*shortspublisher.App, error) {
	cfg, logger, err := c.load()
	if err != nil {
		return nil, err
	}
	return shortspublisher.NewApp(cfg, logger)
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configPath: &configFlag}

	serve := newServeCommand(ctx)
	rootCmd := &cobra.Command{
		Use:           "shorts-publisher",
		Short:         "Publish scheduled shorts and serve the publishing API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (overrides CONFIG_FILE)")

	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(newRunOnceCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newMarkPostedCommand(ctx))

	return rootCmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the schedule loop and HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.app()
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

func newRunOnceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run a single schedule pass and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.app()
			if err != nil {
				return err
			}
			result, err := app.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Processed) == 0 {
				fmt.Fprintf(out, "No videos due at %s\n", result.Timestamp)
				return nil
			}
			fmt.Fprintf(out, "Posted %d video(s) at %s: %s\n", len(result.Processed), result.Timestamp, strings.Join(result.Processed, ", "))
			return nil
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show tracked videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(*ctx.configPath)
			if err != nil {
				return err
			}
			doc, err := storage.NewVideoStore(cfg.Store.DataFile).Read()
			if err != nil {
				return err
			}

			videos := doc.Videos
			if status != "" {
				videos = filterByStatus(videos, models.VideoStatus(status))
			}

			out := cmd.OutOrStdout()
			if len(videos) == 0 {
				fmt.Fprintln(out, "No videos")
				return nil
			}
			fmt.Fprintln(out, renderVideoTable(videos, shouldDecorate(out)))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show videos in this status (draft, scheduled, posted)")
	return cmd
}

func newMarkPostedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-posted <id>",
		Short: "Mark one video as posted now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.app()
			if err != nil {
				return err
			}
			video, found, err := app.MarkPosted(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("video %q not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s posted at %s\n", video.ID, deref(video.PublishedAt))
			return nil
		},
	}
}

func filterByStatus(videos []models.VideoItem, status models.VideoStatus) []models.VideoItem {
	var filtered []models.VideoItem
	for _, v := range videos {
		if v.Status == status {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
