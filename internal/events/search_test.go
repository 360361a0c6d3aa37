package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	_ "github.com/eventharmony/eventharmony/testing"
)

func TestNormalizeSearch(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"José García", "jose garcia"},
		{"  MÜLLER  ", "muller"},
		{"Ærø", "ærø"},
		{"plain ascii", "plain ascii"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeSearch(tc.in), "input=%q", tc.in)
	}
}

func TestSearchTextCoversIdentityFields(t *testing.T) {
	p := &Participant{
		FirstName: "Zoë",
		LastName:  "Brontë",
		Email:     "zoe@example.com",
		Company:   "Acme GmbH",
	}
	doc := searchText(p)
	assert.Contains(t, doc, "zoe bronte")
	assert.Contains(t, doc, "zoe@example.com")
	assert.Contains(t, doc, "acme gmbh")
}
