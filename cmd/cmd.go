// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag   { return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"} }
func prettyFlag() cli.Flag { return &cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"} }

// tracksCommand manages tracks in the library
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tracks",
		Aliases: []string{"t"},
		Usage:   "Library track operations",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List tracks, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Match title, artist or album"},
					&cli.StringFlag{Name: "source", Usage: "Only tracks from this source (local, audius)"},
					&cli.StringFlag{Name: "format", Usage: "Only tracks in this format (mp3, opus, ...)"},
					&cli.BoolFlag{Name: "liked", Usage: "Only liked tracks"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of tracks to print"},
					jsonFlag(), prettyFlag(),
				},
				Action: r.ListTracks,
			},
			{
				Name:      "show",
				Usage:     "Show a single track",
				ArgsUsage: "<track-id>",
				Flags:     []cli.Flag{prettyFlag()},
				Action:    r.ShowTrack,
			},
			{
				Name:      "add",
				Usage:     "Import a local audio file or a catalog track",
				ArgsUsage: "<path | audius-id>",
				Action:    r.AddTrack,
			},
			{
				Name:      "like",
				Usage:     "Mark a track as liked",
				ArgsUsage: "<track-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "unlike", Usage: "Clear the liked flag instead"},
				},
				Action: r.LikeTrack,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Remove a track and its playlist memberships",
				ArgsUsage: "<track-id>",
				Action:    r.DeleteTrack,
			},
		},
	}
}

// playlistsCommand manages playlists
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List playlists, most recently updated first",
				Flags:   []cli.Flag{jsonFlag(), prettyFlag()},
				Action:  r.ListPlaylists,
			},
			{
				Name:      "show",
				Usage:     "Show a playlist and its tracks",
				ArgsUsage: "<playlist-id>",
				Flags:     []cli.Flag{jsonFlag(), prettyFlag()},
				Action:    r.ShowPlaylist,
			},
			{
				Name:      "create",
				Usage:     "Create an empty playlist",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Playlist description"},
					&cli.StringFlag{Name: "cover", Usage: "Cover art URL"},
				},
				Action: r.CreatePlaylist,
			},
			{
				Name:      "add",
				Usage:     "Append tracks to a playlist",
				ArgsUsage: "<playlist-id> <track-id>...",
				Action:    r.AddToPlaylist,
			},
			{
				Name:      "remove",
				Usage:     "Remove tracks from a playlist",
				ArgsUsage: "<playlist-id> <track-id>...",
				Action:    r.RemoveFromPlaylist,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a playlist",
				ArgsUsage: "<playlist-id>",
				Action:    r.DeletePlaylist,
			},
			{
				Name:      "export",
				Usage:     "Export a playlist to files",
				ArgsUsage: "<playlist-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (csv, md, txt)",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output base path, defaults to the playlist name",
					},
				},
				Action: r.ExportPlaylist,
			},
		},
	}
}

// historyCommand shows the recently played list
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recently played tracks",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "Clear the recently played list"},
			jsonFlag(), prettyFlag(),
		},
		Action: r.History,
	}
}

// scanCommand imports local folders
func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Import audio files from folders, defaults to library.paths",
		ArgsUsage: "[dir...]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Usage: "Number of extraction workers", Value: 4},
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Keep watching the folders for changes"},
		},
		Action: r.Scan,
	}
}

// catalogCommand queries the remote catalog
func catalogCommand(r *Runner) *cli.Command {
	flags := func() []cli.Flag {
		return []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum number of tracks", Value: 20},
			&cli.BoolFlag{Name: "save", Usage: "Save results to the library"},
			jsonFlag(), prettyFlag(),
		}
	}

	return &cli.Command{
		Name:  "catalog",
		Usage: "Browse the Audius catalog",
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search catalog tracks",
				ArgsUsage: "<query>",
				Flags:     flags(),
				Action:    r.CatalogSearch,
			},
			{
				Name:   "trending",
				Usage:  "List trending catalog tracks",
				Flags:  flags(),
				Action: r.CatalogTrending,
			},
		},
	}
}

// settingsCommand reads and writes persisted settings
func settingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Persisted key/value settings",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List every setting",
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.ListSettings,
			},
			{
				Name:      "get",
				Usage:     "Print a setting",
				ArgsUsage: "<key>",
				Action:    r.GetSetting,
			},
			{
				Name:      "set",
				Usage:     "Store a setting",
				ArgsUsage: "<key> <value>",
				Action:    r.SetSetting,
			},
		},
	}
}

// shellCommand starts the interactive player
func shellCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive player prompt",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "playlist", Aliases: []string{"p"}, Usage: "Queue this playlist on start"},
		},
		Action: r.Shell,
	}
}

// serveCommand runs the HTTP control API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the player control API and state stream",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address, defaults to server.host:server.port"},
		},
		Action: r.Serve,
	}
}
