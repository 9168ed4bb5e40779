package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Simplici0/signquote/internal/pricing"
	"github.com/Simplici0/signquote/internal/ratecard"
)

var errIncomplete = errors.New("rate card is incomplete")

// cardSource selects where a command reads its rate card from.
type cardSource struct {
	cardPath     string
	pricingSetID string
}

func (s *cardSource) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.cardPath, "card", "", "rate card file (YAML, or JSON by .json extension)")
	cmd.Flags().StringVar(&s.pricingSetID, "pricing-set", "", "pricing set ID in the database (default: the active set)")
}

func (c *cli) loadCard(ctx context.Context, src cardSource) (*ratecard.RateCard, error) {
	if src.cardPath != "" {
		doc, err := readDocument(src.cardPath)
		if err != nil {
			return nil, err
		}
		return doc.Build()
	}

	store, database, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	id := src.pricingSetID
	if id == "" {
		active, err := store.Active(ctx)
		if err != nil {
			return nil, err
		}
		id = active.ID
	}
	return store.Load(ctx, id)
}

func readDocument(path string) (ratecard.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return ratecard.Document{}, fmt.Errorf("open rate card: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ratecard.DecodeJSON(f)
	}
	return ratecard.DecodeYAML(f)
}

func (c *cli) newCalcCmd() *cobra.Command {
	var (
		src    cardSource
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "calc INPUT.json",
		Short: "Price one quote item",
		Long: `Validates a quote item and prints its cost breakdown.
Use "-" to read the item from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			card, err := c.loadCard(cmd.Context(), src)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			in, err := pricing.Validate(raw, card.FinishRules())
			if err != nil {
				var verrs pricing.ValidationErrors
				if errors.As(err, &verrs) {
					for _, fe := range verrs {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", fe.Field, fe.Message)
					}
				}
				return err
			}
			out, err := pricing.Calculate(in, card)
			if err != nil {
				c.log.Debug("calculation failed", zap.String("kind", pricing.KindOf(err)), zap.Error(err))
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return printBreakdown(cmd.OutOrStdout(), card.Meta(), in, out)
		},
	}
	src.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full breakdown as JSON")
	return cmd
}

func readInput(stdin io.Reader, path string) (pricing.RawInput, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return pricing.RawInput{}, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var raw pricing.RawInput
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return pricing.RawInput{}, fmt.Errorf("decode input: %w", err)
	}
	return raw, nil
}

func (c *cli) newCheckCmd() *cobra.Command {
	var src cardSource
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report rate card rows missing for the option catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := c.catalog()
			if err != nil {
				return err
			}
			card, err := c.loadCard(cmd.Context(), src)
			if err != nil {
				return err
			}

			report := ratecard.CheckCompleteness(card, catalog)
			printReport(cmd.OutOrStdout(), report)
			if !report.OK {
				return fmt.Errorf("%w: %d missing rows", errIncomplete, len(report.Missing))
			}
			return nil
		},
	}
	src.bind(cmd)
	return cmd
}

func printReport(w io.Writer, report ratecard.Report) {
	if report.OK {
		fmt.Fprintln(w, "complete")
	}
	for _, m := range report.Missing {
		fmt.Fprintf(w, "missing  %s\n", m)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "warning  %s\n", warning)
	}
}
