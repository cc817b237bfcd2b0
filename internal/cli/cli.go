package cli

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cn-dashboard/internal/reportapi"
	"cn-dashboard/internal/services"
)

// Source describes where reports are read from. It is filled from flags
// or CN_* environment variables.
type Source struct {
	APIURL   string
	Username string
	Password string
	Token    string
	CSVFile  string
	Timeout  time.Duration
}

// FetcherFactory builds the report source used by the commands.
type FetcherFactory func(src Source, logger *slog.Logger) (services.Fetcher, error)

// CLI represents the command-line interface
type CLI struct {
	v          *viper.Viper
	newFetcher FetcherFactory
	reporter   *Reporter
	logger     *slog.Logger
	rootCmd    *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	Output     io.Writer
	Logger     *slog.Logger
	NewFetcher FetcherFactory
}

func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	if opts.NewFetcher == nil {
		opts.NewFetcher = DefaultFetcher
	}

	v := viper.New()
	v.SetEnvPrefix("CN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cli := &CLI{
		v:          v,
		newFetcher: opts.NewFetcher,
		reporter:   NewReporter(opts.Output),
		logger:     opts.Logger,
	}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

func (cli *CLI) Execute() error {
	return cli.rootCmd.Execute()
}

// SetArgs overrides os.Args, used by tests.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cnreport",
		Short:         "Credit note report summaries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("api-url", "", "Report API base URL")
	flags.String("username", "", "Report API username")
	flags.String("password", "", "Report API password")
	flags.String("token", "", "Report API bearer token, skips login")
	flags.String("csv", "", "Read reports from a CSV export instead of the API")
	flags.Duration("timeout", 30*time.Second, "Report fetch timeout")
	_ = cli.v.BindPFlags(flags)

	cmd.AddCommand(cli.newSummaryCmd())
	cmd.AddCommand(cli.newWidgetsCmd())

	return cmd
}

func (cli *CLI) source() Source {
	return Source{
		APIURL:   cli.v.GetString("api-url"),
		Username: cli.v.GetString("username"),
		Password: cli.v.GetString("password"),
		Token:    cli.v.GetString("token"),
		CSVFile:  cli.v.GetString("csv"),
		Timeout:  cli.v.GetDuration("timeout"),
	}
}

// DefaultFetcher reads a CSV export when one is given and the report API
// otherwise.
func DefaultFetcher(src Source, logger *slog.Logger) (services.Fetcher, error) {
	if src.CSVFile != "" {
		return reportapi.NewCSVSource(src.CSVFile, logger), nil
	}
	if src.APIURL == "" {
		return nil, errors.New("either --api-url or --csv is required")
	}
	return reportapi.NewClient(reportapi.Config{
		BaseURL:  src.APIURL,
		Username: src.Username,
		Password: src.Password,
		Token:    src.Token,
		Timeout:  src.Timeout,
	}, logger), nil
}
