// Package app provides the commands of the stampcut CLI.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hupe1980/stampcut/config"
)

// NewRootCmd creates the root command. level is the log level used unless
// --verbose raises it to debug.
func NewRootCmd(level slog.Level) *cobra.Command {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:               "stampcut",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Cut postage stamps from a tiled sky survey",
		Long: `stampcut reads a catalog of sky positions and writes one square FITS stamp per
target, stitched from every survey tile that overlaps it.

Options are read, lowest precedence first, from built-in defaults, the YAML
file given with --config, STAMPCUT_* environment variables and flags.

A log (psinfo.txt) and a fixed-width report (psreport.txt) with one row per
target are written into the output location. Status codes:

  0  stamp written
  1  center of the stamp is blank
  2  target is not in the survey field
  3  an image could not be read`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCut(cmd, v, level)
		},
	}

	addFlags(rootCmd.Flags())
	if err := bindFlags(v, rootCmd.Flags()); err != nil {
		slog.Error("Error binding flags", "error", err)
	}

	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func addFlags(fs *pflag.FlagSet) {
	d := config.Defaults()

	fs.String("config", "", "Path to a YAML configuration file")

	fs.StringP("catalog", "c", "", "Input catalog (ASCII table)")
	fs.IntP("id-column", "i", 0, "Column of the target ID, counting from 1 (row number if unset)")
	fs.IntP("ra-column", "r", 0, "Column of the right ascension, counting from 1")
	fs.IntP("dec-column", "d", 0, "Column of the declination, counting from 1")
	fs.Float64P("resolution", "a", 0, "Survey pixel scale in arcsec/pixel")
	fs.Float64P("stamp-size", "p", 0, "Stamp side in arcseconds")

	fs.StringP("survey", "s", d.Survey, "Survey location: directory, s3://bucket/prefix or minio://bucket/prefix")
	fs.StringP("images", "b", "", "Tile name pattern inside the survey location")
	fs.StringP("weights", "w", "", "Weight map pattern inside the survey location")

	fs.StringP("output", "o", "", "Output location for stamps, log and report")
	fs.String("prefix", "", "Prefix of stamp names")
	fs.StringP("ext", "f", d.Ext, "Suffix of stamp names")
	fs.String("compression", "", "Stamp compression: gzip, zstd or lz4")
	fs.BoolP("clean", "g", false, "Remove existing stamps from the output before the run")
	fs.String("log-file", d.LogFile, "Name of the log inside the output")
	fs.String("report-file", d.ReportFile, "Name of the report inside the output")

	fs.IntP("threads", "t", d.Threads, "Number of workers")
	fs.IntP("check-size", "k", d.CheckSize, "Side of the blank-center test window (0 disables)")
	fs.BoolP("verbose", "e", false, "Log every target and print the resolved configuration")

	fs.Int64("memory-limit", 0, "Memory budget for canvases and cached blocks in bytes (0 = unlimited)")
	fs.Int64("max-open-tiles", 0, "Compressed tiles held decoded at once (0 = unlimited)")
	fs.Int64("io-limit", 0, "Survey read rate in bytes per second (0 = unlimited)")
	fs.Int64("cache-size", d.CacheSize, "Block cache for remote survey reads in bytes")
	fs.Int("retries", d.Retries, "Attempts per remote store operation")

	fs.String("metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	fs.String("result-table", "", "DynamoDB table receiving every log entry")
	fs.String("run-id", "", "Run ID (generated if unset)")
	fs.Bool("resume", false, "Skip targets already stored in --result-table under --run-id")

	fs.String("remote.endpoint", "", "Object store endpoint")
	fs.String("remote.region", "", "Object store region")
	fs.String("remote.access-key", "", "MinIO access key")
	fs.String("remote.secret-key", "", "MinIO secret key")
	fs.Bool("remote.use-ssl", d.Remote.UseSSL, "Use TLS for MinIO")
}

// bindFlags binds every flag except --config to the viper key of the same
// name.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == "config" {
			return
		}
		err = v.BindPFlag(f.Name, f)
	})
	return err
}

// VersionInfo describes the build.
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go"`
	Platform  string `json:"platform"`
}

// GetVersionInfo reads the module version from the build info.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:   "(devel)",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		info.Version = bi.Main.Version
	}
	return info
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if format == "json" {
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			_, err = fmt.Fprintf(out, "stampcut %s (%s, %s)\n", info.Version, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
