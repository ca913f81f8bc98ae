package eval

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

// WriteTo renders the report as text: header, accuracy, classification
// report and confusion matrix. The output depends only on the report.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "===== %s =====\n", r.Model)
	fmt.Fprintf(&buf, "Accuracy: %.4f (%d/%d)\n\n", r.Accuracy, r.Correct, r.Total)

	buf.WriteString("Classification Report:\n")
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "\tprecision\trecall\tf1-score\tsupport\t\n")
	for _, c := range r.Classes {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%d\t\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprint(tw, "\t\t\t\t\t\n")
	fmt.Fprintf(tw, "accuracy\t\t\t%.4f\t%d\t\n", r.Accuracy, r.Total)
	fmt.Fprintf(tw, "macro avg\t%.4f\t%.4f\t%.4f\t%d\t\n", r.MacroAvg.Precision, r.MacroAvg.Recall, r.MacroAvg.F1, r.MacroAvg.Support)
	fmt.Fprintf(tw, "weighted avg\t%.4f\t%.4f\t%.4f\t%d\t\n", r.WeightedAvg.Precision, r.WeightedAvg.Recall, r.WeightedAvg.F1, r.WeightedAvg.Support)
	tw.Flush()

	buf.WriteString("\nConfusion Matrix (rows = true, columns = predicted):\n")
	tw = tabwriter.NewWriter(&buf, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\t%s\t\n", strings.Join(r.Labels, "\t"))
	for i, row := range r.Confusion {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = strconv.Itoa(v)
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", r.Labels[i], strings.Join(cells, "\t"))
	}
	tw.Flush()

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func (r *Report) String() string {
	var b strings.Builder
	r.WriteTo(&b)
	return b.String()
}

// Failure is a model that produced no report.
type Failure struct {
	Model string
	Stage string
	Err   error
}

// WriteComparison prints one summary line per model in the order given.
// Each report is shown as computed; nothing is merged or averaged.
func WriteComparison(w io.Writer, reports []*Report, failures []Failure) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "model\taccuracy\tmacro f1\tweighted f1\tsamples\t")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%d\t\n", r.Model, r.Accuracy, r.MacroAvg.F1, r.WeightedAvg.F1, r.Total)
	}
	for _, f := range failures {
		fmt.Fprintf(tw, "%s\tfailed at %s\t\t\t\t\n", f.Model, f.Stage)
	}
	return tw.Flush()
}
