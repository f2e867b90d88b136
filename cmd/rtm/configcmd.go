package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/quayside/rtmirror/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the config file",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetCredentialsCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Loads the config file, applies defaults and prints the result. The API token is masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runConfigShow(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Remote.APIToken != "" {
		cfg.Remote.APIToken = "****"
	}
	if cfg.Notify.SlackToken != "" {
		cfg.Notify.SlackToken = "****"
	}
	if cfg.DB.Password != "" {
		cfg.DB.Password = "****"
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func newConfigSetCredentialsCmd() *cobra.Command {
	var (
		configPath string
		username   string
	)

	cmd := &cobra.Command{
		Use:   "set-credentials",
		Short: "Store remote credentials in the config file",
		Long:  "Prompts for the API token (input hidden on a terminal) and writes remote.username and remote.api_token to the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSetCredentials(cmd, configPath, username)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVarP(&username, "username", "u", "", "remote account username or email")
	return cmd
}

func runConfigSetCredentials(cmd *cobra.Command, configPath, username string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if username == "" {
		fmt.Fprint(out, "Username: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	token, err := readToken(cmd)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("api token is required")
	}

	cfg.Remote.Username = username
	cfg.Remote.APIToken = token
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", configPath, err)
	}
	// WriteFile keeps the mode of a pre-existing file; the config now holds
	// a secret, so tighten it.
	if err := os.Chmod(configPath, 0600); err != nil {
		return fmt.Errorf("chmod %s: %w", configPath, err)
	}
	fmt.Fprintf(out, "Saved credentials for %s to %s\n", username, configPath)
	return nil
}

// readToken prompts for the API token. On a terminal the input is hidden;
// otherwise (tests, piped input) it falls back to a plain line read.
func readToken(cmd *cobra.Command) (string, error) {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, "API token: ")

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
