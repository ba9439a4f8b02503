package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anime-shed/image-drop-go/internal/config"
	"github.com/anime-shed/image-drop-go/internal/container"
	"github.com/anime-shed/image-drop-go/internal/factory"
	"github.com/anime-shed/image-drop-go/internal/logger"
	"github.com/anime-shed/image-drop-go/internal/render"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	azurePrefix string
	fromAzure   bool
	mode        string
	uploadURL   string
	output      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "upload [paths...]",
		Short: "Drop images on the upload widget and print the analysis",
		Long: "Reads images from local paths (directories are expanded one level) or an\n" +
			"Azure blob container, uploads them to UPLOAD_URL and renders the results.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.fromAzure, "azure", false, "read files from AZURE_CONTAINER instead of local paths")
	flags.StringVar(&opts.azurePrefix, "azure-prefix", "", "only read blobs below this prefix")
	flags.StringVar(&opts.mode, "mode", "", "display mode, single or gallery (overrides MODE)")
	flags.StringVar(&opts.uploadURL, "upload-url", "", "analysis endpoint (overrides UPLOAD_URL)")
	flags.StringVarP(&opts.output, "output", "o", "text", "output format: text, html or json")

	return cmd
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	logger.UseTextFormatter()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if mode := config.NormalizeMode(opts.mode); mode != "" {
		cfg.Mode = mode
	}
	if opts.uploadURL != "" {
		cfg.UploadURL = opts.uploadURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	c, err := container.NewContainer(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close(context.Background()) }()

	sourceType, sourceArgs := factory.LocalSource, factory.SourceArgs{Paths: args}
	if opts.fromAzure || opts.azurePrefix != "" {
		sourceType, sourceArgs = factory.AzureSource, factory.SourceArgs{Prefix: opts.azurePrefix}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := c.Drops().DropAndWait(ctx, sourceType, sourceArgs)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"batch_id": resp.BatchID,
		"accepted": resp.Accepted,
		"rejected": resp.Rejected,
		"mode":     cfg.Mode,
	}).Info("Batch finished")

	return printPage(cmd, opts.output, c)
}

func printPage(cmd *cobra.Command, format string, c *container.Container) error {
	var page render.Node
	c.Widget().Render(func() {
		page = c.Document().Snapshot()
	})

	out := cmd.OutOrStdout()
	switch format {
	case "text":
		_, err := fmt.Fprintln(out, render.Terminal(page))
		return err
	case "html":
		return render.WriteHTML(out, page, render.WithIndent("  "))
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

