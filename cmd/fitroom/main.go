package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fitroom/internal/app"
	"fitroom/internal/config"
	"fitroom/internal/tryon"
	"fitroom/internal/wardrobe"
)

var rootCmd = &cobra.Command{
	Use:   "fitroom",
	Short: "Fitroom virtual try-on",
	Long: `Fitroom renders a person's photo into a dressable model, layers garments
on top of it, and shows the outfit in different poses. The API server keeps
per-session outfit history with undo; this CLI runs the server and one-off
render operations.`,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FITROOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(posesCmd())
	rootCmd.AddCommand(wardrobeCmd())
	rootCmd.AddCommand(generateCmd())
}

func serveCmd() *cobra.Command {
	var addr, catalog string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Fitroom API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cfg.Addr == "" {
				cfg.Addr = ":8080"
			}
			if cmd.Flags().Changed("catalog") {
				cfg.CatalogPath = catalog
			}
			a, err := app.NewWithConfig(cfg)
			if err != nil {
				return err
			}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = a.Shutdown(ctx)
			}()
			fmt.Printf("Serving Fitroom API on %s (OpenAPI at /openapi.json)\n", cfg.Addr)
			return a.Start()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&catalog, "catalog", "", "wardrobe catalog JSON path")
	return cmd
}

func posesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poses",
		Short: "List the fixed pose set",
		RunE: func(cmd *cobra.Command, args []string) error {
			poses := tryon.Poses()
			if viper.GetBool("json") {
				return printJSON(map[string]any{
					"poses":   poses,
					"default": tryon.DefaultPose(),
				})
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"#", "Pose", ""})
			for i, p := range poses {
				marker := ""
				if p == tryon.DefaultPose() {
					marker = "default"
				}
				tw.AppendRow(table.Row{i, p, marker})
			}
			tw.Render()
			return nil
		},
	}
}

func wardrobeCmd() *cobra.Command {
	w := &cobra.Command{Use: "wardrobe", Short: "Inspect wardrobe catalogs"}
	w.AddCommand(wardrobeListCmd())
	w.AddCommand(wardrobeCheckCmd())
	return w
}

func wardrobeListCmd() *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog garments",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(catalog)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Name", "Image"})
			for _, g := range catalog {
				tw.AppendRow(table.Row{g.ID, g.Name, truncate(g.Image, 60)})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog JSON path (built-in catalog if omitted)")
	return cmd
}

func wardrobeCheckCmd() *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a catalog JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if catalogPath == "" {
				return errors.New("--catalog required")
			}
			catalog, err := wardrobe.LoadCatalog(catalogPath)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": true, "garments": len(catalog)})
			}
			fmt.Printf("catalog OK: %d garments\n", len(catalog))
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog JSON path")
	_ = cmd.MarkFlagRequired("catalog")
	return cmd
}

func loadCatalog(path string) (wardrobe.Catalog, error) {
	if path == "" {
		return wardrobe.DefaultCatalog(), nil
	}
	return wardrobe.LoadCatalog(path)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
