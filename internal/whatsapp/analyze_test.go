package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waflow/waflow/internal/model"
)

func TestAnalyzeTemplateBodyParameters(t *testing.T) {
	components := model.TemplateComponents{
		{Type: "BODY", Text: "Hi {{2}}, order {{10}} and again {{2}} plus {{1}}"},
	}

	analysis := AnalyzeTemplate("order_update", "en_US", components)

	require.Len(t, analysis.BodyParameters, 3)
	// Deduplicated and numerically sorted: {{10}} after {{2}}.
	assert.Equal(t, "1", analysis.BodyParameters[0].Key)
	assert.Equal(t, "2", analysis.BodyParameters[1].Key)
	assert.Equal(t, "10", analysis.BodyParameters[2].Key)
}

func TestAnalyzeTemplateHeaderRules(t *testing.T) {
	tests := []struct {
		name          string
		header        model.TemplateComponent
		requiresParam bool
	}{
		{
			"text header with placeholder",
			model.TemplateComponent{Type: "HEADER", Format: "TEXT", Text: "Hello {{1}}"},
			true,
		},
		{
			"static text header",
			model.TemplateComponent{Type: "HEADER", Format: "TEXT", Text: "Welcome"},
			false,
		},
		{
			"image header",
			model.TemplateComponent{Type: "HEADER", Format: "IMAGE"},
			true,
		},
		{
			"video header",
			model.TemplateComponent{Type: "HEADER", Format: "VIDEO"},
			true,
		},
		{
			"document header",
			model.TemplateComponent{Type: "HEADER", Format: "DOCUMENT"},
			true,
		},
		{
			"location header",
			model.TemplateComponent{Type: "HEADER", Format: "LOCATION"},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := AnalyzeTemplate("t", "en", model.TemplateComponents{tt.header})
			assert.True(t, analysis.HasHeader)
			assert.Equal(t, tt.header.Format, analysis.HeaderType)
			assert.Equal(t, tt.requiresParam, analysis.HeaderRequiresParam)
		})
	}
}

func TestAnalyzeTemplateNoComponents(t *testing.T) {
	analysis := AnalyzeTemplate("bare", "", nil)

	assert.Equal(t, "en_US", analysis.Language)
	assert.False(t, analysis.HasHeader)
	assert.False(t, analysis.HeaderRequiresParam)
	assert.Empty(t, analysis.BodyParameters)
}

func TestAnalyzeTemplateButtons(t *testing.T) {
	components := model.TemplateComponents{
		{Type: "BODY", Text: "Track your order"},
		{Type: "BUTTONS", Buttons: []model.TemplateButton{
			{Type: "QUICK_REPLY", Text: "Stop"},
			{Type: "URL", Text: "Track", URL: "https://example.com/track/{{1}}"},
		}},
	}

	analysis := AnalyzeTemplate("tracking", "en_US", components)

	require.Len(t, analysis.ButtonParameters, 1)
	assert.Equal(t, 1, analysis.ButtonParameters[0].Index)
	assert.Equal(t, "url_variable", analysis.ButtonParameters[0].Type)
}

func TestAnalyzeTemplateDescriptionTruncated(t *testing.T) {
	long := make([]byte, 0, 260)
	for i := 0; i < 260; i++ {
		long = append(long, 'a')
	}
	components := model.TemplateComponents{{Type: "BODY", Text: string(long)}}

	analysis := AnalyzeTemplate("long", "en_US", components)

	assert.Len(t, analysis.Description, 203)
	assert.Equal(t, "...", analysis.Description[200:])
}
