package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"substream/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set store.uri, tmdb.api_key, and search.api_key before starting the daemon.")
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "path", "", "Destination for the sample configuration")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Print the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if flag := cmd.Root().PersistentFlags().Lookup("config"); flag != nil {
				path = flag.Value.String()
			}
			cfg, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "# %s\n", resolvedPath)
			} else {
				fmt.Fprintf(out, "# defaults (no file at %s)\n", resolvedPath)
			}
			rows := [][]string{
				{"paths.ingest_dir", cfg.Paths.IngestDir},
				{"paths.data_dir", cfg.Paths.DataDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"paths.api_bind", cfg.Paths.APIBind},
				{"store.uri", redact(cfg.Store.URI)},
				{"store.database", cfg.Store.Database},
				{"store.collection", cfg.Store.Collection},
				{"tmdb.api_key", redact(cfg.TMDB.APIKey)},
				{"search.api_key", redact(cfg.Search.APIKey)},
				{"workflow.workers", fmt.Sprintf("%d", cfg.Workflow.Workers)},
				{"workflow.batch_width", fmt.Sprintf("%d", cfg.Workflow.BatchWidth)},
				{"logging.level", cfg.Logging.Level},
				{"watcher.enabled", fmt.Sprintf("%t", cfg.Watcher.Enabled)},
			}
			fmt.Fprintln(out, renderTable([]string{"KEY", "VALUE"}, rows))
			return nil
		},
	}
}

func redact(value string) string {
	if value == "" {
		return "(unset)"
	}
	if len(value) <= 8 {
		return "********"
	}
	return value[:4] + "…" + value[len(value)-2:]
}
