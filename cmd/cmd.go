// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand writes the default configuration file
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Write a default configuration file",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// authCommand prints the Spotify authorization URL
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorization helpers",
		Commands: []*cli.Command{
			{
				Name:  "url",
				Usage: "Print the Spotify authorization URL",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the URL in the system browser",
					},
				},
				Action: r.AuthURL,
			},
		},
	}
}

// serveCommand runs the HTTP service
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the playlist HTTP service",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Serve,
	}
}
