package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/lewtec/postal-annotator/annotation"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "postal-annotator [config.yaml]",
	Short: "Review the OCR output of postal package labels",
	Long: strings.TrimSpace(`
Start the annotation web server. Reviewers upload a zip of a processed
batch, label each package group and download the annotations as CSV.

Without a config file the built-in defaults are used.

Examples:
  postal-annotator
  postal-annotator config.yaml --addr :9090
  postal-annotator -c config.yaml --sessions-dir ./sessions
`),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		if len(args) == 1 {
			configFile = args[0]
		}

		config := annotation.DefaultConfig()
		if configFile != "" {
			loaded, err := annotation.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			config = loaded
		}
		if cmd.Flags().Changed("addr") {
			config.Server.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("sessions-dir") {
			config.Sessions.Dir, _ = cmd.Flags().GetString("sessions-dir")
		}
		if config.Sessions.Dir != "" {
			if err := os.MkdirAll(config.Sessions.Dir, 0o755); err != nil {
				return fmt.Errorf("failed to create sessions dir: %w", err)
			}
		}

		uploadRoot := filepath.Join(os.TempDir(), "postal-annotator")
		app := annotation.NewAnnotatorApp(config, osfs.New("/"), uploadRoot)
		defer app.Close()

		log.Printf("Configuration: %s", stringOr(configFile, "built-in defaults"))
		log.Printf("Sessions: %s", stringOr(config.Sessions.Dir, "in memory"))
		log.Printf("Uploads: %s", uploadRoot)
		log.Printf("Error categories: %d", len(config.Categories))
		for _, category := range config.Categories {
			log.Printf("  - %s", category)
		}
		log.Printf("Starting server on: %s", config.Server.Addr)

		return serve(cmd.Context(), config.Server.Addr, app.GetHTTPHandler())
	},
}

// serve runs the server until ctx is done
func serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func stringOr(str, or string) string {
	if str == "" {
		return or
	}
	return str
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.Flags().StringP("config", "c", "", "Config file for the annotator")
	rootCmd.Flags().StringP("addr", "a", annotation.DefaultAddr, "Address to bind the webserver")
	rootCmd.Flags().StringP("sessions-dir", "s", "", "Directory for per-session databases")
}
