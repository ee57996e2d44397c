package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/gts/sdk/go/gtsclient"
)

// rootCmd represents the base command when the `gts-admin` binary is called without any subcommands.
// It provides the entry point for the entire CLI application.
// rootCmd 代表在没有任何子命令的情况下调用 `gts-admin` 二进制文件时的基本命令。
// 它为整个 CLI 应用程序提供入口点。
var rootCmd = &cobra.Command{
	Use:   "gts-admin",
	Short: "A CLI tool for operating a running GTS token service.",
	Long: `gts-admin is a command-line interface for operating the GTS token service,
such as issuing and checking access tokens, provisioning consumer signing
credentials and managing the credential cache.`,
}

var (
	serviceAddr    string
	requestTimeout time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serviceAddr, "addr", "http://localhost:8080", "Base URL of the GTS service")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 10*time.Second, "Timeout for API requests")
}

// apiClient builds the API client every subcommand talks through.
func apiClient() *gtsclient.Client {
	return gtsclient.New(serviceAddr, gtsclient.WithTimeout(requestTimeout))
}

// Execute is the main entry point for the CLI application.
// It adds all child commands to the root command, parses the command-line arguments,
// and executes the appropriate command. If an error occurs, it prints the error and exits.
// Execute 是 CLI 应用程序的主入口点。
// 它将所有子命令添加到根命令中，解析命令行参数，并执行相应的命令。
// 如果发生错误，它会打印错误并退出。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
