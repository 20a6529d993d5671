package ux

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	LogicalName string   `json:"logical_name" yaml:"logical_name"`
	Methods     []string `json:"methods" yaml:"methods"`
}

func (e entry) RenderText(w io.Writer, s Styles) error {
	_, err := fmt.Fprintln(w, s.KeyValue("page", e.LogicalName, 6))
	return err
}

type version string

func (v version) String() string { return "pomgen " + string(v) }

func format(t *testing.T, name string, opts FormatterOptions, data any) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	opts.Writer = &buf
	f, err := NewFormatter(name, &opts)
	require.NoError(t, err)
	err = f.Format(data)
	return buf.String(), err
}

func TestNewFormatterRejectsUnknownFormats(t *testing.T) {
	for _, name := range append(Formats, "") {
		_, err := NewFormatter(name, nil)
		assert.NoError(t, err, name)
	}
	_, err := NewFormatter("xml", nil)
	assert.ErrorContains(t, err, "supported: text, json, yaml")
}

func TestStructuredFormats(t *testing.T) {
	login := entry{LogicalName: "Login Page", Methods: []string{"open", "click_sign_in"}}
	tests := []struct {
		format string
		opts   FormatterOptions
		want   string
	}{
		{"json", FormatterOptions{}, "{\n  \"logical_name\": \"Login Page\",\n  \"methods\": [\n    \"open\",\n    \"click_sign_in\"\n  ]\n}\n"},
		{"json", FormatterOptions{Compact: true}, "{\"logical_name\":\"Login Page\",\"methods\":[\"open\",\"click_sign_in\"]}\n"},
		{"yaml", FormatterOptions{}, "logical_name: Login Page\nmethods:\n  - open\n  - click_sign_in\n"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s compact=%v", tt.format, tt.opts.Compact), func(t *testing.T) {
			out, err := format(t, tt.format, tt.opts, login)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestTextFormatter(t *testing.T) {
	out, err := format(t, "text", FormatterOptions{NoColor: true}, entry{LogicalName: "Login Page"})
	require.NoError(t, err)
	assert.Equal(t, "page:  Login Page\n", out)

	out, err = format(t, "text", FormatterOptions{}, version("v1.2.0"))
	require.NoError(t, err)
	assert.Equal(t, "pomgen v1.2.0\n", out)

	out, err = format(t, "", FormatterOptions{}, "Wrote .pomgen/capabilities.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Wrote .pomgen/capabilities.yaml\n", out)

	_, err = format(t, "text", FormatterOptions{}, map[string]int{"pages": 2})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "use --format json or yaml"))
}
