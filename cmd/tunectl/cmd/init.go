package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initForce bool

// initTemplate is the default tunectl.yaml scaffold.
// It includes a working sysctl example and commented-out alternatives.
const initTemplate = `# tunectl catalog
# Docs: https://github.com/halvard/tunectl
version: 1

# variables:
#   max_open_files: "65536"

# services:
#   - name: redis
#     config_path: /etc/redis/redis.conf
#     assign: space            # "space" (redis, nginx) or "equals" (ini style)
#     check_command: [redis-server, --test-config, "{path}"]
#     reload_command: [systemctl, reload, redis]

settings:
  # Kernel parameter (most common)
  - id: vm.swappiness
    backend: sysctl
    value: 10

  # Service config directive
  # - id: redis.maxmemory
  #   backend: service
  #   service: redis
  #   key: maxmemory
  #   value: 256mb

  # Rendered file
  # - id: limits
  #   backend: file
  #   path: /etc/security/limits.d/90-nofile.conf
  #   template: |
  #     * soft nofile {{ .max_open_files }}
  #     * hard nofile {{ .max_open_files }}
  #   mode: "0644"
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter tunectl.yaml catalog",
	Long: `Creates a tunectl.yaml file with a well-commented template including a
working sysctl example and documented alternatives for service directives
and rendered files.

Use --force to overwrite an existing catalog file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath := catalogPath
		if !filepath.IsAbs(outPath) {
			abs, err := filepath.Abs(outPath)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			outPath = abs
		}

		if !initForce {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
			}
		}

		if err := os.WriteFile(outPath, []byte(initTemplate), 0644); err != nil {
			return fmt.Errorf("writing catalog: %w", err)
		}

		info("Created %s", outPath)
		info("")
		info("Next steps:")
		info("  1. Edit the file to declare your tunables")
		info("  2. Run 'tunectl plan' to see the pending changes")
		info("  3. Run 'tunectl apply' to converge the host")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing catalog file")
	rootCmd.AddCommand(initCmd)
}
