package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/owenwright/cookies/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "set-operator-key key",
		Short: "Set the key that guards pack registration over HTTP",
		Args:  cobra.ExactArgs(1),
		Run:   runSetOperatorKey,
	}
	RootCmd.AddCommand(cmd)
}

func runSetOperatorKey(cmd *cobra.Command, args []string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
	if err != nil {
		exitErr("hash key", err)
	}

	db, err := openDB()
	if err != nil {
		exitErr("open database", err)
	}
	defer db.Close()

	if err := store.NewSettingsStore(db).Set(store.SettingOperatorKeyHash, string(hash)); err != nil {
		exitErr("store key hash", err)
	}
	fmt.Println("operator key updated")
}
