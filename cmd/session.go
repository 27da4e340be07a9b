package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or reset the stored onboarding session",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(store)

		blob, ok, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("No stored session.")
			return nil
		}

		fmt.Printf("Session (%s)\n", cfg.Session.Driver)
		fmt.Printf("   Onboarded: %t\n", blob.Onboarded)
		if blob.Token != "" {
			fmt.Println("   Token: set")
		}
		if !blob.UpdatedAt.IsZero() {
			fmt.Printf("   Updated: %s\n", blob.UpdatedAt.Format(time.RFC3339))
		}
		steps := make([]string, 0, len(blob.Saved))
		for name := range blob.Saved {
			steps = append(steps, name)
		}
		sort.Strings(steps)
		for _, name := range steps {
			fmt.Printf("   %s:\n", name)
			saved := blob.Saved[name]
			keys := make([]string, 0, len(saved))
			for k := range saved {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("     %-16s %s\n", k, saved[k])
			}
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget saved answers so the wizard starts over",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(store)

		if err := store.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Session cleared.")
		return nil
	},
}

var sessionLoginCmd = &cobra.Command{
	Use:   "login <token>",
	Short: "Store the backend token used for submissions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(store)

		ctx := cmd.Context()
		blob, _, err := store.Load(ctx)
		if err != nil {
			return err
		}
		blob.Token = args[0]
		blob.UpdatedAt = time.Now()
		if err := store.Save(ctx, blob); err != nil {
			return err
		}
		fmt.Println("Token saved.")
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd, sessionClearCmd, sessionLoginCmd)
	rootCmd.AddCommand(sessionCmd)
}
