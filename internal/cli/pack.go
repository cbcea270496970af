package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/owenwright/cookies/internal/model"
	"github.com/owenwright/cookies/internal/scan"
	"github.com/owenwright/cookies/internal/store"
)

func init() {
	createCmd := &cobra.Command{
		Use:   "create-pack token1 token2 token3 token4",
		Short: "Register a sealed pack of four tokens",
		Args:  cobra.ExactArgs(model.PackSize),
		Run:   runCreatePack,
	}
	createCmd.Flags().String("type", model.CookieTypeCookie, "Cookie type for all four tokens")

	listCmd := &cobra.Command{
		Use:   "list-packs",
		Short: "List registered packs",
		Run:   runListPacks,
	}

	showCmd := &cobra.Command{
		Use:   "show-pack id",
		Short: "Show one pack with its tokens",
		Args:  cobra.ExactArgs(1),
		Run:   runShowPack,
	}

	RootCmd.AddCommand(createCmd, listCmd, showCmd)
}

func runCreatePack(cmd *cobra.Command, args []string) {
	cookieType, _ := cmd.Flags().GetString("type")

	tokenIDs := make([]string, 0, len(args))
	for _, raw := range args {
		id, err := scan.Normalize(raw)
		if err != nil {
			exitErr("normalize token", err)
		}
		tokenIDs = append(tokenIDs, id)
	}

	db, err := openDB()
	if err != nil {
		exitErr("open database", err)
	}
	defer db.Close()

	packID, err := store.NewPackStore(db).CreatePack(cmd.Context(), tokenIDs, cookieType)
	if err != nil {
		exitErr("create pack", err)
	}
	fmt.Println(packID)
}

func runListPacks(cmd *cobra.Command, args []string) {
	db, err := openDB()
	if err != nil {
		exitErr("open database", err)
	}
	defer db.Close()

	packs, err := store.NewPackStore(db).ListPacks(cmd.Context())
	if err != nil {
		exitErr("list packs", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(packs); err != nil {
		exitErr("encode packs", err)
	}
}

func runShowPack(cmd *cobra.Command, args []string) {
	db, err := openDB()
	if err != nil {
		exitErr("open database", err)
	}
	defer db.Close()

	pack, err := store.NewPackStore(db).GetPack(cmd.Context(), args[0])
	if err != nil {
		exitErr("get pack", err)
	}
	if pack == nil {
		fmt.Fprintln(os.Stderr, "pack not found")
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pack); err != nil {
		exitErr("encode pack", err)
	}
}
