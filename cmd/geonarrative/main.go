package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/cenkalti/geonarrative"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Error loading .env file: %v", err)
	}

	// Set configuration for the geonarrative package
	geonarrative.Config.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	geonarrative.Config.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	geonarrative.Config.DatabasePath = getenv("GEONARRATIVE_DB", "geonarrative.db")

	rootCmd := &cobra.Command{
		Use:   "geonarrative",
		Short: "Spatial-semantic news narrative clustering CLI",
	}
	rootCmd.PersistentFlags().StringVarP(&geonarrative.Config.SettingsPath, "config", "c",
		getenv("GEONARRATIVE_CONFIG", "geonarrative.yaml"), "settings file")

	// Add all commands from the geonarrative package
	rootCmd.AddCommand(geonarrative.ImportArticlesCmd)
	rootCmd.AddCommand(geonarrative.EmbedArticlesCmd)
	rootCmd.AddCommand(geonarrative.ClusterArticlesCmd)
	rootCmd.AddCommand(geonarrative.GenerateReportCmd)
	rootCmd.AddCommand(geonarrative.SchemaCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cleanCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: import-articles -> embed-articles -> cluster-articles -> generate-report",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Running full pipeline...")
		geonarrative.ImportArticlesCmd.Run(cmd, args)
		geonarrative.EmbedArticlesCmd.Run(cmd, args)
		geonarrative.ClusterArticlesCmd.Run(cmd, args)
		geonarrative.GenerateReportCmd.Run(cmd, args)
		log.Println("Pipeline complete.")
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean cluster outputs, the site and the report",
	Run: func(cmd *cobra.Command, args []string) {
		settings := geonarrative.LoadSettings(geonarrative.Config.SettingsPath)

		dirs := []string{settings.Paths.Clusters, settings.Paths.Site}
		for _, dir := range dirs {
			files, err := os.ReadDir(dir)
			if err != nil {
				if !os.IsNotExist(err) {
					log.Printf("Failed to read %s: %v", dir, err)
				}
				continue
			}
			for _, file := range files {
				if file.IsDir() {
					continue
				}
				err := os.Remove(filepath.Join(dir, file.Name()))
				if err != nil {
					log.Printf("Failed to remove %s: %v", file.Name(), err)
				}
			}
		}

		if err := os.Remove(settings.Paths.Report); err != nil {
			if !os.IsNotExist(err) {
				log.Printf("Failed to remove %s: %v", settings.Paths.Report, err)
			}
		}

		log.Println("Cleaned cluster outputs, site and report.")
	},
}
