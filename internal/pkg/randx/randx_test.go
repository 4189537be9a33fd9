package randx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	req := require.New(t)

	id := ID()

	req.True(IsValidID(id))
	req.NotEqual(id, ID())
	req.False(IsValidID(""))
	req.False(IsValidID("not-a-uuid"))
	req.False(IsValidID("{" + id + "}"))
}

func TestBase62(t *testing.T) {
	req := require.New(t)

	s, err := Base62(12)

	req.NoError(err)
	req.Len(s, 12)
	for _, c := range s {
		req.True(strings.ContainsRune(Base62Chars, c))
	}
}
