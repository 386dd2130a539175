package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/born-ml/compress/internal/checkpoint"
	"github.com/born-ml/compress/internal/config"
	"github.com/born-ml/compress/internal/logfields"
	"github.com/born-ml/compress/internal/sets"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

// matchReport is the printable form of a match result.
type matchReport struct {
	Complete            bool              `json:"complete"`
	Prefixes            []string          `json:"prefixes"`
	Entries             map[string]string `json:"entries"`
	UnmatchedInSnapshot []string          `json:"unmatched_in_snapshot"`
	UnmatchedInModel    map[string]string `json:"unmatched_in_model"`
}

func newMatchReport(prefixes []string, entries map[string]string, inSnapshot sets.Set[string], inModel map[string]checkpoint.Mismatch) matchReport {
	r := matchReport{
		Complete:            inSnapshot.Len() == 0 && len(inModel) == 0,
		Prefixes:            prefixes,
		Entries:             entries,
		UnmatchedInSnapshot: sets.Sorted(inSnapshot),
		UnmatchedInModel:    make(map[string]string, len(inModel)),
	}
	if r.Entries == nil {
		r.Entries = map[string]string{}
	}
	for id, m := range inModel {
		r.UnmatchedInModel[id] = m.String()
	}
	return r
}

func matchCmd() *cli.Command {
	var (
		snapshotPath string
		modelPath    string
		configPath   string
		strict       bool
		prefixes     []string
		asJSON       bool
		logs         logOptions
	)

	return &cli.Command{
		Name:  "match",
		Usage: "Match a snapshot's parameter identifiers against a model's",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "snapshot",
				Aliases:     []string{"s"},
				Usage:       "path to the saved .safetensors snapshot",
				Destination: &snapshotPath,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "path to a .safetensors file holding the live model's parameters",
				Destination: &modelPath,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "configuration document supplying checkpoint prefixes and strictness",
				Destination: &configPath,
			},
			&cli.BoolFlag{Name: "strict", Usage: "fail unless every identifier matches", Destination: &strict},
			&cli.StringSliceFlag{Name: "prefix", Usage: "structural prefix to strip (repeatable, in order)", Destination: &prefixes},
			&cli.BoolFlag{Name: "json", Usage: "print the result as JSON", Destination: &asJSON},
		}, logs.flags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := logs.logger(stderr(cmd))
			if err != nil {
				return err
			}

			if configPath != "" {
				doc, err := config.Load(configPath)
				if err != nil {
					return err
				}
				if !cmd.IsSet("prefix") {
					prefixes = doc.Checkpoint.Prefixes
				}
				if !cmd.IsSet("strict") {
					strict = doc.Checkpoint.StrictOr(strict)
				}
			}

			snapshot, _, err := checkpoint.ReadSafeTensorsShapes(snapshotPath)
			if err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			model, _, err := checkpoint.ReadSafeTensorsShapes(modelPath)
			if err != nil {
				return fmt.Errorf("model: %w", err)
			}

			matcher := checkpoint.NewMatcher(prefixes...)
			used := matcher.Normalizer().Prefixes()
			plan, err := matcher.Match(snapshot, model, strict)

			var mismatch *checkpoint.ResumeMismatchError
			switch {
			case errors.As(err, &mismatch):
				if asJSON {
					report := newMatchReport(used, nil, mismatch.UnmatchedInSnapshot, mismatch.UnmatchedInModel)
					if werr := writeJSON(stdout(cmd), report); werr != nil {
						return werr
					}
				}
				return err
			case err != nil:
				return err
			}

			if !plan.Complete() {
				logger.Warn("Partial match",
					logfields.Count(len(plan.Entries)),
					logfields.UnmatchedInSnapshot(plan.UnmatchedSnapshotIDs()),
					logfields.UnmatchedInModel(plan.UnmatchedModelIDs()))
			}
			report := newMatchReport(used, plan.Entries, plan.UnmatchedInSnapshot, plan.UnmatchedInModel)
			if asJSON {
				return writeJSON(stdout(cmd), report)
			}
			return writeMatchText(stdout(cmd), plan, report)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeMatchText(w io.Writer, plan *checkpoint.LoadPlan, r matchReport) error {
	if _, err := fmt.Fprintf(w, "matched %d identifiers\n", len(plan.Entries)); err != nil {
		return err
	}
	for _, id := range plan.ModelIDs() {
		if _, err := fmt.Fprintf(w, "  %s <- %s\n", id, plan.Entries[id]); err != nil {
			return err
		}
	}
	if r.Complete {
		return nil
	}
	_, err := fmt.Fprintln(w, plan.Warning())
	return err
}
