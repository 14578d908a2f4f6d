package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/justestif/go-spotify-stats/internal/stats"
)

var errMissingFile = errors.New("inspect needs a FILE argument")

func inspect(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errMissingFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	return writeRecords(cmd.Root().Writer, cmd.String("kind"), cmd.String("format"), data)
}

// writeRecords decodes a raw API response of the given kind and writes the
// display records in format.
func writeRecords(w io.Writer, kind, format string, data []byte) error {
	k, err := stats.ParseKind(kind)
	if err != nil {
		return err
	}

	records, err := stats.Decode(k, data)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
