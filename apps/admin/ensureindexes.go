package main

import "context"

func (cli *commandLine) ensureIndexes() error {
	return cli.db.EnsureIndexes(context.Background())
}
