package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NoPKT/agentim/internal/config"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the coordinator bearer token",
	}
	cmd.AddCommand(tokenSetCmd())
	cmd.AddCommand(tokenClearCmd())
	return cmd
}

func tokenStore() (*config.TokenStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return config.NewTokenStore(cfg.Coordinator.KeyringService, cfg.Coordinator.TokenFile), nil
}

func tokenSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [token]",
		Short: "Store the coordinator token (argument or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				fmt.Fprint(os.Stderr, "Token: ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return err
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return errors.New("empty token")
			}

			store, err := tokenStore()
			if err != nil {
				return err
			}
			if err := store.Save(token); err != nil {
				return err
			}
			fmt.Println("Token stored.")
			return nil
		},
	}
}

func tokenClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored coordinator token",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := tokenStore()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Println("Token cleared.")
			return nil
		},
	}
}
