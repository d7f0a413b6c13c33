package main

import "github.com/urfave/cli/v2"

func (s *srv) loadApp() {
	app := cli.NewApp()
	app.Action = cli.ShowAppHelp
	app.Name = "DropVault"
	app.Usage = ""
	app.Commands = []*cli.Command{
		{
			Action:      server.startApi,
			Name:        "api",
			Usage:       "Start service api",
			Flags:       []cli.Flag{},
			Category:    "Api",
			Description: `Serve the room, entry, draw, and economy APIs.`,
		},
		{
			Action:      server.startCron,
			Name:        "cron",
			Usage:       "Start the room lifecycle scheduler",
			Flags:       []cli.Flag{},
			Category:    "Worker",
			Description: `Lock, settle, and cancel rooms whose clock transitions are due.`,
		},
		{
			Action:      server.startMigrate,
			Name:        "migrate",
			Usage:       "Migrate the database schema",
			Flags:       []cli.Flag{},
			Category:    "Database",
			Description: `Apply the schema of all entities to the configured database.`,
		},
	}

	s.app = app
}
