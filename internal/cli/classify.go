package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rehost/internal/model"
	"github.com/ppiankov/rehost/internal/rights"
)

var (
	classifyRights string
	classifySource string
	classifyYear   string
	classifyJSON   bool
)

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify one work's rights signals",
	Long: `Classify runs the rehosting rules on a single set of provider signals
and prints the verdict and resulting license.

Example:
  rehost classify --year 1851
  rehost classify --rights "Attribution Share Alike (cc by-sa)"
  rehost classify --source "Project Gutenberg" --json`,
	Args: cobra.NoArgs,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVar(&classifyRights, "rights", "", "provider rights statement")
	classifyCmd.Flags().StringVar(&classifySource, "source", "", "provider source (dcterms:source)")
	classifyCmd.Flags().StringVar(&classifyYear, "year", "", "publication year or date (dcterms:issued)")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "print JSON")
}

type classification struct {
	Verdict    string `json:"verdict"`
	RightsURI  string `json:"rights_uri"`
	RightsName string `json:"rights_name"`
	// Preserved is set when the provider's own CC license is kept
	Preserved bool `json:"preserved"`
}

func classifyInput(rightsText, source, issued string) (*classification, error) {
	year, err := rights.ParseYear(issued)
	if err != nil {
		return nil, err
	}
	in := rights.Input{Rights: rightsText, Source: source, PublicationYear: year}
	status := rights.Classify(in)
	return &classification{
		Verdict:    rights.CanRehostInUS(in).String(),
		RightsURI:  string(status),
		RightsName: status.Name(),
		Preserved:  status != model.RightsInCopyright && status != model.RightsUnknown && rights.DefaultPolicy().Preserved(rightsText),
	}, nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	c, err := classifyInput(classifyRights, classifySource, classifyYear)
	if err != nil {
		return err
	}

	if classifyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}
	kept := "no"
	if c.Preserved {
		kept = "yes"
	}
	fmt.Println(renderTable([]string{"Verdict", "License", "URI", "Kept from provider"},
		[][]string{{c.Verdict, c.RightsName, c.RightsURI, kept}}))
	return nil
}
