package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{"text/html", "application/xhtml+xml"}, New().SupportedMIMETypes())
}

func TestExtract(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head><title>Quality &amp; Safety</title><style>p { color: red }</style></head>
<body>
  <script>alert("x")</script>
  <!-- hidden -->
  <h1>Policy</h1>
  <p>We   follow <b>ISO&nbsp;9001</b>.</p>
  <ul><li>Audits</li><li>Training</li></ul>
</body>
</html>`

	got, err := New().Extract(context.Background(), &domain.RawDocument{
		URI:      "policy.html",
		MIMEType: "text/html",
		Content:  []byte(page),
	})

	require.NoError(t, err)
	assert.Equal(t, "Quality & Safety", got.Title)
	assert.Equal(t, "Policy\nWe follow ISO 9001.\nAudits\nTraining", got.Text)
}

func TestExtract_TitleFallback(t *testing.T) {
	got, err := New().Extract(context.Background(), &domain.RawDocument{
		URI:     "/site/about-us.html",
		Content: []byte("<p>About</p>"),
	})

	require.NoError(t, err)
	assert.Equal(t, "about us", got.Title)
	assert.Equal(t, "About", got.Text)
}

func TestExtract_Nil(t *testing.T) {
	_, err := New().Extract(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
