package cmd

import (
	"fmt"
	"log"
	"net/http"

	"curator/internal/apihandlers"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run Curator as an HTTP API server",
	Long: `Starts an HTTP server exposing curation results (decisions, clusters,
triage, costs) via a RESTful API. Allows interaction from other tools or UIs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Retrieve the application instance from context
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err // Error already formatted by GetAppFromContext
		}

		// Setup Gin router
		router := gin.Default() // Includes logger and recovery middleware

		apiHandler := apihandlers.NewAPIHandler(appInstance)

		v1 := router.Group("/api/v1")
		{
			decisionGroup := v1.Group("/decisions")
			{
				decisionGroup.GET("", apiHandler.ListDecisionsHandler)
				decisionGroup.GET("/:itemID", apiHandler.GetDecisionHandler)
			}

			clusterGroup := v1.Group("/clusters")
			{
				clusterGroup.GET("", apiHandler.ListClustersHandler)
			}

			triageGroup := v1.Group("/triage")
			{
				triageGroup.GET("", apiHandler.ListTriageHandler)
				triageGroup.PUT("/:itemID", apiHandler.ResolveTriageHandler)
			}

			calibrationGroup := v1.Group("/calibrations")
			{
				calibrationGroup.GET("/:contentType", apiHandler.ListCalibrationsHandler)
			}

			v1.GET("/usage", apiHandler.UsageSummaryHandler)
			v1.POST("/curate", apiHandler.EnqueueBatchHandler)
		}

		// Simple health check endpoint
		router.GET("/health", func(c *gin.Context) {
			if err := appInstance.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		listenAddr := serveAddr
		if listenAddr == "" {
			listenAddr = appInstance.Config.Serve.Address
		}
		log.Printf("Starting Curator API server on http://%s", listenAddr)

		// router.Run blocks unless an error occurs
		if err := router.Run(listenAddr); err != nil {
			log.Printf("ERROR: Failed to run API server: %v", err)
			return fmt.Errorf("failed to run API server: %w", err)
		}

		log.Println("Curator API server stopped.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides serve.address from config)")
}
