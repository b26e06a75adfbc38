package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

// Prompt asks the operator on a terminal. It re-asks on anything other than
// yes/no/skip and treats end of input as skip.
type Prompt struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPrompt reads answers from in and writes the trade summary and question to out.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewScanner(in), out: out}
}

// Decide implements Approver.
func (p *Prompt) Decide(ctx context.Context, t models.TradeRecord) (Decision, error) {
	fmt.Fprintf(p.out, "\n%s %s (expires %s)\n", t.Symbol, t.Strategy, t.Expiry.Format("2006-01-02"))
	fmt.Fprintf(p.out, "   Trade: %s\n", t.Description)
	fmt.Fprintf(p.out, "   Max Loss: $%s  |  Max Profit: $%s  |  Prob: %s\n",
		t.Risk.MaxLoss, t.Risk.MaxProfit, t.Risk.ProbProfit.StringFixed(2))

	for {
		if err := ctx.Err(); err != nil {
			return Skip, err
		}
		fmt.Fprint(p.out, "Simulate this trade? (yes/no/skip): ")
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return Skip, fmt.Errorf("reading answer: %w", err)
			}
			return Skip, nil
		}
		switch strings.ToLower(strings.TrimSpace(p.in.Text())) {
		case "yes", "y":
			return Approve, nil
		case "no", "n":
			return Decline, nil
		case "skip", "s":
			return Skip, nil
		default:
			fmt.Fprintln(p.out, "Invalid input. Please enter 'yes', 'no', or 'skip'")
		}
	}
}
