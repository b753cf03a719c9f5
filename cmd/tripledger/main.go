package main

import (
	"context"
	"os"

	"tripledger/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		out := &cli.OutputFormatter{
			Format:    root.PersistentFlags().Lookup("format").Value.String(),
			Writer:    root.OutOrStdout(),
			ErrWriter: root.ErrOrStderr(),
		}
		_ = out.Error(err)
		os.Exit(cli.GetExitCode(err))
	}
}
