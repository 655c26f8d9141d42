package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		bound bool
		want  bool
		term  string
	}{
		{"draft keyword", "Can you draft a reply saying I'm busy?", true, true, "draft"},
		{"upper case", "PLEASE REPLY FOR ME", true, true, "reply"},
		{"compose", "compose something polite", true, true, "compose"},
		{"write back", "write back tomorrow", true, true, "write back"},
		{"write a response", "could you write a response", true, true, "write a response"},
		{"accepted false positive", "don't reply to spam", true, true, "reply"},
		{"plain question", "What's in my inbox?", true, false, ""},
		{"no email bound", "draft a reply", false, false, "draft"},
		{"empty", "", true, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.text, tt.bound)
			require.Equal(t, tt.want, got.DraftIntent)
			require.Equal(t, tt.term, got.Term)
		})
	}
}

func TestClassify_NeverTrueWithoutEmail(t *testing.T) {
	for _, term := range Terms {
		require.False(t, Classify("please "+term+" now", false).DraftIntent, term)
	}
}
