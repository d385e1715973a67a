package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPretty(t *testing.T) {
	assert.Equal(t, "{\n  \"b\": 1.50,\n  \"a\": [\n    1\n  ]\n}", Pretty([]byte(` {"b":1.50,"a":[1]} `)))
	assert.Equal(t, "<html>oops</html>", Pretty([]byte("  <html>oops</html>\n")))
	assert.Equal(t, "", Pretty(nil))
}
