package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zdunecki/onboarding/pkg/cli"
	"github.com/zdunecki/onboarding/pkg/logging"
	"github.com/zdunecki/onboarding/pkg/wizard"
)

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Run the interactive onboarding wizard",
	Long: `Walks through the onboarding steps in the terminal. Saved steps are
resumed from the session store; a finished onboarding is not repeated
until the session is cleared.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("the wizard needs an interactive terminal (try 'onboard serve' instead)")
		}

		log, err := logging.NewFile(cfg.Log.Level, cfg.Log.File)
		if err != nil {
			return err
		}
		logger = log

		store, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(store)

		ctx := cmd.Context()
		machine, err := newMachine(ctx, log, store)
		if err != nil {
			return err
		}

		st, err := cli.RunWizard(ctx, machine)
		if errors.Is(err, wizard.ErrAlreadyOnboarded) {
			fmt.Println("✅ Onboarding is already complete.")
			fmt.Println("   Run 'onboard session clear' to start over.")
			return nil
		}
		if err != nil {
			return err
		}

		if st.Phase != wizard.Submitted {
			fmt.Printf("Progress saved at step %d of %d. Run 'onboard' to continue.\n",
				st.Step+1, machine.Registry().Len())
			return nil
		}
		fmt.Println("🎉 Onboarding submitted")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(wizardCmd)
}
