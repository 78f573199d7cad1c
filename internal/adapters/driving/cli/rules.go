package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show the effective classification rule set",
	Long: `Prints the classification rules in evaluation order: lowest priority
number first, the first matching rule wins. Rules come from the settings
file when it defines any, otherwise the shipped set applies.`,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	rules := append([]domain.RuleSpec(nil), settings.Pipeline.Rules...)
	domain.SortRules(rules)

	cmd.Println("Classification Rules")
	cmd.Println("====================")
	cmd.Println()

	for _, rule := range rules {
		cmd.Printf("%4d  %s -> %s (score %g)\n",
			rule.Priority, rule.Name, rule.Classification, rule.Score)
		if len(rule.When) == 0 {
			cmd.Println("        always matches")
			continue
		}
		for _, cond := range rule.When {
			cmd.Printf("        when %s %s %s\n", cond.Field, cond.Op, condOperand(cond))
		}
	}
	return nil
}

// condOperand renders the right-hand side of a condition.
func condOperand(c domain.Condition) string {
	switch {
	case c.ValueField != "":
		return "field " + c.ValueField
	case c.Op == domain.OpPresent || c.Op == domain.OpAbsent:
		return ""
	default:
		return strconv.Quote(c.Value)
	}
}
