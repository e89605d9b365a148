package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nesium/splitship/internal/experiment"
	"github.com/nesium/splitship/internal/forms"
	"github.com/nesium/splitship/internal/relay"
	"github.com/nesium/splitship/internal/server"
	"github.com/nesium/splitship/internal/storage"
)

var (
	port       int
	endpoint   string
	strategy   string
	pageFile   string
	forwardURL string
	offline    bool
	timeoutSec int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the splitship server.

The server provides:
  - The marketing page at / with the active headline variant applied
  - The embeddable client script at /ab.js
  - Form submission relay at /submit
  - Dashboard for viewing results

Example:
  splitship serve --port 8080 --endpoint https://script.google.com/macros/s/XXX/exec`,
	RunE: runServe,
}

func init() {
	defaultPort := 8080
	if p := os.Getenv("SS_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			defaultPort = parsed
		}
	}

	serveCmd.Flags().IntVarP(&port, "port", "p", defaultPort, "port to listen on")
	serveCmd.Flags().StringVar(&endpoint, "endpoint", getEnvOrDefault("SS_ENDPOINT", relay.PlaceholderEndpoint), "spreadsheet web-app URL")
	serveCmd.Flags().StringVar(&strategy, "strategy", getEnvOrDefault("SS_STRATEGY", "post"), "delivery strategy (post, pixel, callback)")
	serveCmd.Flags().StringVar(&pageFile, "page", getEnvOrDefault("SS_PAGE", ""), "marketing page served at / (optional)")
	serveCmd.Flags().StringVar(&forwardURL, "forward-url", getEnvOrDefault("SS_FORWARD_URL", ""), "external analytics collector URL (optional)")
	serveCmd.Flags().BoolVar(&offline, "offline", os.Getenv("SS_OFFLINE") == "1", "simulate deliveries without network access")
	serveCmd.Flags().IntVar(&timeoutSec, "timeout", 8, "delivery timeout in seconds")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	kv, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer kv.Close()

	forwarders := []experiment.Forwarder{experiment.LogForwarder{Log: log.Named("analytics")}}
	if forwardURL != "" {
		forwarders = append(forwarders, experiment.NewHTTPForwarder(forwardURL, log.Named("forward")))
	}

	exp, err := experiment.New(cfg, kv,
		experiment.WithLogger(log.Named("experiment")),
		experiment.WithForwarders(forwarders...),
	)
	if err != nil {
		return err
	}

	dispatcher := relay.New(relay.Config{
		Endpoint: endpoint,
		Strategy: relay.Strategy(strategy),
		Timeout:  time.Duration(timeoutSec) * time.Second,
		Offline:  offline,
	}, relay.WithLogger(log.Named("relay")))

	ctrl := forms.NewController(exp, dispatcher, log.Named("forms"))

	srv := server.New(server.Config{
		Port:      port,
		TokenFile: tokenFilePath(),
		PageFile:  pageFile,
	}, exp, ctrl, log.Named("server"))

	printStartup(port, srv.Token())
	return srv.Start()
}

func printStartup(port int, token string) {
	fmt.Println()
	fmt.Printf("splitship running on http://localhost:%d\n", port)
	fmt.Printf("Dashboard: http://localhost:%d/dashboard?token=%s\n", port, token)
	fmt.Println()
	fmt.Println("Add the script to your site:")
	fmt.Printf("  <script src=\"http://localhost:%d/ab.js\" defer></script>\n", port)
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  results       Show variant metrics")
	fmt.Println("  winner        Show the computed winner")
	fmt.Println("  set-variant   Pin the active variant")
	fmt.Println("  reset         Clear assignment and analytics")
	fmt.Println("  export        Export raw event data")
	fmt.Println("  check         Test the delivery endpoint")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
}
