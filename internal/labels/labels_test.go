package labels

import (
	"errors"
	"testing"

	evalerrors "github.com/ben-gid/traffic-eval/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpace_SortsAndDedups(t *testing.T) {
	s, err := NewSpace([]string{"yield", "stop", "yield", "10", "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "2", "stop", "yield"}, s.Names())
	assert.Equal(t, 4, s.Len())
}

func TestNewSpace_Empty(t *testing.T) {
	_, err := NewSpace(nil)
	assert.Error(t, err)
	_, err = NewSpace([]string{"a", ""})
	assert.Error(t, err)
}

func TestSpace_RoundTrip(t *testing.T) {
	s, err := NewSpace([]string{"0", "1", "10", "11", "2", "stop"})
	require.NoError(t, err)
	for _, name := range s.Names() {
		i, ok := s.Index(name)
		require.True(t, ok)
		back, ok := s.Name(i)
		require.True(t, ok)
		assert.Equal(t, name, back)
	}
	_, ok := s.Name(-1)
	assert.False(t, ok)
	_, ok = s.Name(s.Len())
	assert.False(t, ok)
}

func TestSpace_NamesIsACopy(t *testing.T) {
	s, err := NewSpace([]string{"a", "b"})
	require.NoError(t, err)
	names := s.Names()
	names[0] = "z"
	assert.Equal(t, []string{"a", "b"}, s.Names())
}

func TestParseScheme(t *testing.T) {
	for in, want := range map[string]Scheme{
		"":          SchemeCanonical,
		"canonical": SchemeCanonical,
		"numeric":   SchemeNumeric,
		"vocab":     SchemeVocab,
	} {
		got, err := ParseScheme(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseScheme("onehot")
	assert.Error(t, err)
}

func TestReconcile_Schemes(t *testing.T) {
	// GTSRB-style directory names: sorted order differs from numeric order.
	space, err := NewSpace([]string{"0", "1", "2", "10", "11"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		scheme Scheme
		vocab  []string
		raw    []Raw
		want   []string
	}{
		{
			name:   "canonical indices follow sorted names",
			scheme: SchemeCanonical,
			raw:    []Raw{IndexOf(0), IndexOf(1), IndexOf(2), IndexOf(4)},
			want:   []string{"0", "1", "10", "2"},
		},
		{
			name:   "numeric indices are decimal class names",
			scheme: SchemeNumeric,
			raw:    []Raw{IndexOf(0), IndexOf(2), IndexOf(10), IndexOf(11)},
			want:   []string{"0", "2", "10", "11"},
		},
		{
			name:   "vocab indices use the model ordering",
			scheme: SchemeVocab,
			vocab:  []string{"11", "10", "2", "1", "0"},
			raw:    []Raw{IndexOf(0), IndexOf(4)},
			want:   []string{"11", "0"},
		},
		{
			name:   "names pass through unchanged",
			scheme: SchemeNumeric,
			raw:    []Raw{NameOf("10"), NameOf("0")},
			want:   []string{"10", "0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReconciler(space, tt.scheme, tt.vocab)
			require.NoError(t, err)
			got, err := r.Reconcile(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReconcile_Failures(t *testing.T) {
	space, err := NewSpace([]string{"stop", "yield"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		scheme  Scheme
		vocab   []string
		raw     []Raw
		wantPos int
	}{
		{"index equal to class count", SchemeCanonical, nil, []Raw{IndexOf(0), IndexOf(2)}, 1},
		{"negative index", SchemeCanonical, nil, []Raw{IndexOf(-1)}, 0},
		{"unknown name", SchemeCanonical, nil, []Raw{NameOf("stop"), NameOf("merge")}, 1},
		{"numeric name not in space", SchemeNumeric, nil, []Raw{IndexOf(3)}, 0},
		{"vocab index out of range", SchemeVocab, []string{"stop"}, []Raw{IndexOf(1)}, 0},
		{"vocab entry not in space", SchemeVocab, []string{"stop", "merge"}, []Raw{IndexOf(0), IndexOf(1)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReconciler(space, tt.scheme, tt.vocab)
			require.NoError(t, err)
			got, err := r.Reconcile(tt.raw)
			assert.Nil(t, got)
			var mapErr *evalerrors.LabelMappingError
			require.True(t, errors.As(err, &mapErr), "got %v", err)
			assert.Equal(t, tt.wantPos, mapErr.Position)
		})
	}
}

func TestNewReconciler_VocabRequired(t *testing.T) {
	space, err := NewSpace([]string{"stop"})
	require.NoError(t, err)
	_, err = NewReconciler(space, SchemeVocab, nil)
	assert.Error(t, err)
	_, err = NewReconciler(nil, SchemeCanonical, nil)
	assert.Error(t, err)
}
