package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AzielCF/az-infer/ui/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the inference MCP server using SSE",
	Long:  `Start an MCP (Model Context Protocol) server using Server-Sent Events (SSE) transport. AI agents can call the text pipelines as tools; they share the same lazy pipeline registry as the REST gateway.`,
	Run:   mcpServer,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("port", "", "Port for the SSE MCP server")
	mcpCmd.Flags().String("host", "", "Host for the SSE MCP server")
	_ = viper.BindPFlag("MCP_PORT", mcpCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("MCP_HOST", mcpCmd.Flags().Lookup("host"))
}

func mcpServer(_ *cobra.Command, _ []string) {
	mcpServer := server.NewMCPServer(
		"Az-Infer MCP Server",
		cfg.App.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	inferenceHandler := mcp.InitMcpInference(inferenceUsecase)
	inferenceHandler.AddInferenceTools(mcpServer)

	sseServer := server.NewSSEServer(
		mcpServer,
		server.WithBaseURL(fmt.Sprintf("http://%s:%s", cfg.MCP.Host, cfg.MCP.Port)),
		server.WithKeepAlive(true),
	)

	addr := fmt.Sprintf("%s:%s", cfg.MCP.Host, cfg.MCP.Port)
	logrus.Printf("[MCP] Starting SSE server on %s", addr)
	logrus.Printf("[MCP] SSE endpoint: http://%s/sse", addr)
	logrus.Printf("[MCP] Message endpoint: http://%s/message", addr)

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[MCP] Reception of termination signal, shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sseServer.Shutdown(ctx); err != nil {
			logrus.Errorf("[MCP] Error during shutdown: %v", err)
		}
	}()

	preloadPipelines()

	if err := sseServer.Start(addr); err != nil {
		logrus.Errorf("[MCP] SSE server stopped: %v", err)
	}
	StopApp()
}
