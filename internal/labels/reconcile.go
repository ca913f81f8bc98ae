package labels

import (
	"fmt"
	"strconv"

	evalerrors "github.com/ben-gid/traffic-eval/internal/errors"
)

// Scheme tells the reconciler how a model's native class indices map to
// class names.
type Scheme string

const (
	// SchemeCanonical: index i is the i-th sorted class name.
	SchemeCanonical Scheme = "canonical"
	// SchemeNumeric: index i is the class whose name is the decimal form of i,
	// the convention of trainers that used int(dirname) as the label.
	SchemeNumeric Scheme = "numeric"
	// SchemeVocab: index i is the i-th entry of the model's own vocabulary.
	SchemeVocab Scheme = "vocab"
)

func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case SchemeCanonical, SchemeNumeric, SchemeVocab:
		return Scheme(s), nil
	case "":
		return SchemeCanonical, nil
	}
	return "", fmt.Errorf("unknown label scheme %q", s)
}

// Raw is a prediction in a model's native representation: a class index or
// a class name. A non-empty Name wins over Index.
type Raw struct {
	Index int
	Name  string
}

func IndexOf(i int) Raw { return Raw{Index: i} }

func NameOf(n string) Raw { return Raw{Index: -1, Name: n} }

func (r Raw) String() string {
	if r.Name != "" {
		return strconv.Quote(r.Name)
	}
	return strconv.Itoa(r.Index)
}

type Reconciler struct {
	space  *Space
	scheme Scheme
	vocab  []string
}

func NewReconciler(space *Space, scheme Scheme, vocab []string) (*Reconciler, error) {
	if space == nil {
		return nil, fmt.Errorf("reconciler needs a label space")
	}
	if scheme == SchemeVocab && len(vocab) == 0 {
		return nil, fmt.Errorf("vocab scheme without a vocabulary")
	}
	return &Reconciler{space: space, scheme: scheme, vocab: vocab}, nil
}

// Reconcile maps raw predictions to canonical class names. Out-of-range
// indices and unknown names fail with a LabelMappingError; nothing is coerced.
func (r *Reconciler) Reconcile(raw []Raw) ([]string, error) {
	out := make([]string, len(raw))
	for pos, p := range raw {
		name, err := r.one(pos, p)
		if err != nil {
			return nil, err
		}
		out[pos] = name
	}
	return out, nil
}

func (r *Reconciler) one(pos int, p Raw) (string, error) {
	if p.Name != "" {
		if !r.space.Contains(p.Name) {
			return "", &evalerrors.LabelMappingError{Position: pos, Value: p.String(), Reason: "is not a known class"}
		}
		return p.Name, nil
	}

	var name string
	switch r.scheme {
	case SchemeNumeric:
		if p.Index < 0 {
			return "", &evalerrors.LabelMappingError{Position: pos, Value: p.String(), Reason: "is a negative index"}
		}
		name = strconv.Itoa(p.Index)
	case SchemeVocab:
		if p.Index < 0 || p.Index >= len(r.vocab) {
			return "", &evalerrors.LabelMappingError{
				Position: pos, Value: p.String(),
				Reason: fmt.Sprintf("is outside the model vocabulary of %d classes", len(r.vocab)),
			}
		}
		name = r.vocab[p.Index]
	default:
		n, ok := r.space.Name(p.Index)
		if !ok {
			return "", &evalerrors.LabelMappingError{
				Position: pos, Value: p.String(),
				Reason: fmt.Sprintf("is outside the %d canonical classes", r.space.Len()),
			}
		}
		return n, nil
	}

	if !r.space.Contains(name) {
		return "", &evalerrors.LabelMappingError{
			Position: pos, Value: p.String(),
			Reason: fmt.Sprintf("maps to %q which is not a known class", name),
		}
	}
	return name, nil
}
