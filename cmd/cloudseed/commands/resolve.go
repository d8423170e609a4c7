package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	awsclient "github.com/skyfold/cloudseed/internal/aws"
	"github.com/skyfold/cloudseed/pkg/discovery"
	"github.com/skyfold/cloudseed/pkg/telemetry"
	"github.com/skyfold/cloudseed/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	refreshInterval time.Duration
	groupName       string
	hostName        string
	regionFilter    string
	addressFamily   string
	transportPort   uint16
	groupTag        string
	watchInterval   time.Duration
	outputFormat    string
	mockMode        bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Run a discovery cycle and print the candidate list",
	Long: `Resolve cluster member candidates from the EC2 inventory.

Example:
  cloudseed resolve --region us-west-2 --group "prod-*" --address-family private`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := newLogger()

		shutdown, err := telemetry.Init(ctx, version.AppName, version.Current, viper.GetString("otel-endpoint"))
		if err != nil {
			logger.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}

		var inventory discovery.Inventory
		if mockMode {
			inventory = awsclient.MockInventory{}
		} else {
			client, err := awsclient.NewClient(ctx, viper.GetString("region"))
			if err != nil {
				return err
			}
			account, err := client.VerifyIdentity(ctx)
			if err != nil {
				return err
			}
			logger.Debug("verified AWS identity", "account", account, "region", client.Config.Region)

			ec2Inventory := awsclient.NewEC2Inventory(client.Config, logger)
			if groupTag != "" {
				ec2Inventory.GroupTag = groupTag
			}
			inventory = ec2Inventory
		}

		cfg := discovery.Config{
			RefreshInterval: refreshInterval,
			GroupName:       groupName,
			Region:          regionFilter,
			HostName:        hostName,
			AddressFamily:   discovery.AddressFamily(strings.ToLower(addressFamily)),
		}
		resolver, err := discovery.NewResolver(inventory, discovery.StaticConfig(cfg),
			discovery.WithLogger(logger),
			discovery.WithTransport(discovery.NewPortRangeTransport(transportPort)),
		)
		if err != nil {
			return err
		}

		if watchInterval <= 0 {
			report, err := resolver.ResolveReport(ctx)
			if err != nil {
				return err
			}
			return printReport(report)
		}

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		for {
			report, err := resolver.ResolveReport(ctx)
			if err != nil {
				logger.Error("resolution cycle failed", "error", err)
			} else if err := printReport(report); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().DurationVar(&refreshInterval, "refresh-interval", 0, "Candidate cache TTL (0 disables caching, negative caches forever)")
	resolveCmd.Flags().StringVar(&groupName, "group", "", "Group name filter (glob allowed)")
	resolveCmd.Flags().StringVar(&hostName, "host", "", "Host name filter (glob allowed)")
	resolveCmd.Flags().StringVar(&regionFilter, "filter-region", "", "Region filter (exact match)")
	resolveCmd.Flags().StringVar(&addressFamily, "address-family", "private", "Address family: private or public")
	resolveCmd.Flags().Uint16Var(&transportPort, "transport-port", discovery.DefaultTransportPort, "Transport port for resolved endpoints")
	resolveCmd.Flags().StringVar(&groupTag, "group-tag", "", "Instance tag carrying the group name")
	resolveCmd.Flags().DurationVar(&watchInterval, "watch", 0, "Repeat resolution on this interval (0 runs once)")
	resolveCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table or json")

	resolveCmd.Flags().BoolVar(&mockMode, "mock", false, "Resolve against a canned inventory")
	resolveCmd.Flags().MarkHidden("mock")
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

func printReport(report *discovery.Report) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	source := "inventory"
	if report.FromCache {
		source = "cache"
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%d candidate(s) [%s]", len(report.Candidates), source)))

	for _, c := range report.Candidates {
		endpoints := make([]string, 0, len(c.Endpoints))
		for _, ep := range c.Endpoints {
			endpoints = append(endpoints, ep.String())
		}
		fmt.Printf("%s%s\n", cellStyle.Render(c.ID), strings.Join(endpoints, ", "))
	}

	for _, out := range report.Outcomes {
		if out.Omitted != discovery.OmitNone {
			fmt.Println(dimStyle.Render(fmt.Sprintf("  omitted %s (%s)", out.Instance.ID, out.Omitted)))
		}
	}
	return nil
}
