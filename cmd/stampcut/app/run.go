package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/stampcut"
	"github.com/hupe1980/stampcut/config"
	"github.com/hupe1980/stampcut/resultlog"
)

func runCut(cmd *cobra.Command, v *viper.Viper, level slog.Level) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.Load(v, path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Verbose {
		level = slog.LevelDebug
		out, err := cfg.AsYAML()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.ErrOrStderr(), out)
	}

	opts := []stampcut.Option{stampcut.WithLogLevel(level)}

	var prom *stampcut.PrometheusCollector
	if cfg.MetricsFile != "" {
		prom = stampcut.NewPrometheusCollector()
		opts = append(opts, stampcut.WithMetricsCollector(prom))
	}

	if cfg.ResultTable != "" {
		sink, err := newDynamoSink(ctx, cfg)
		if err != nil {
			return err
		}
		opts = append(opts, stampcut.WithSink(sink))
	}

	p, err := stampcut.New(cfg, opts...)
	if err != nil {
		return err
	}

	res, runErr := p.Run(ctx)

	if prom != nil {
		if err := prom.WriteTextfile(cfg.MetricsFile); err != nil {
			slog.Error("Error writing metrics", "file", cfg.MetricsFile, "error", err)
		}
	}
	if res != nil && res.Summary != nil {
		if err := res.Summary.Render(cmd.OutOrStdout()); err != nil {
			return err
		}
	}
	if runErr != nil {
		slog.Error("Run failed", "error", runErr)
		return runErr
	}

	slog.Info("Run finished",
		"run_id", res.RunID,
		"targets", res.Targets,
		"images", res.Images,
		"skipped_images", len(res.SkippedImages),
		"duration", res.Duration,
	)
	return nil
}

func newDynamoSink(ctx context.Context, cfg *config.Config) (*resultlog.DynamoSink, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Remote.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Remote.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return resultlog.NewDynamoSink(dynamodb.NewFromConfig(awsCfg), cfg.ResultTable), nil
}
